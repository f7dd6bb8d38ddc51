package mailer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// Queue is the offline retry list, persisted as a JSON array. Every mutation
// rewrites the file through a temp file and rename so a crash never leaves it half written.
type Queue struct {
	mu         sync.Mutex
	path       string
	failedPath string
	items      []Message
}

// OpenQueue loads path, creating its directory when needed. A missing file is an empty queue.
func OpenQueue(path string) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create queue directory: %w", err)
	}

	q := &Queue{
		path:       path,
		failedPath: strings.TrimSuffix(path, filepath.Ext(path)) + ".failed.json",
	}

	items, err := readMessages(path)
	if err != nil {
		return nil, err
	}
	q.items = items
	return q, nil
}

func (q *Queue) Path() string       { return q.path }
func (q *Queue) FailedPath() string { return q.failedPath }

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Enqueue(msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, msg)
	if err := writeMessages(q.path, q.items); err != nil {
		q.items = q.items[:len(q.items)-1]
		return err
	}
	return nil
}

// Due returns copies of the messages whose NextAttemptAt is not after now.
func (q *Queue) Due(now time.Time) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []Message
	for _, m := range q.items {
		if !m.NextAttemptAt.After(now) {
			due = append(due, m)
		}
	}
	return due
}

func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		return nil
	}
	q.items = slices.Delete(q.items, idx, idx+1)
	return writeMessages(q.path, q.items)
}

// Reschedule records a failed attempt and the time of the next one.
func (q *Queue) Reschedule(id string, attempts int, next time.Time, lastErr string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		return nil
	}
	q.items[idx].Attempts = attempts
	q.items[idx].NextAttemptAt = next
	q.items[idx].LastError = lastErr
	return writeMessages(q.path, q.items)
}

// Bury moves a message to the dead-letter file.
func (q *Queue) Bury(id string, attempts int, lastErr string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := q.indexLocked(id)
	if idx < 0 {
		return nil
	}
	msg := q.items[idx]
	msg.Attempts = attempts
	msg.LastError = lastErr

	failed, err := readMessages(q.failedPath)
	if err != nil {
		return err
	}
	if err := writeMessages(q.failedPath, append(failed, msg)); err != nil {
		return err
	}

	q.items = slices.Delete(q.items, idx, idx+1)
	return writeMessages(q.path, q.items)
}

func (q *Queue) indexLocked(id string) int {
	return slices.IndexFunc(q.items, func(m Message) bool { return m.ID == id })
}

func readMessages(path string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var items []Message
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return items, nil
}

func writeMessages(path string, items []Message) error {
	if items == nil {
		items = []Message{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

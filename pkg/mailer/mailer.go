package mailer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"driveo/pkg/logger"

	"github.com/google/uuid"
)

const maxBackoff = time.Hour

type Options struct {
	Interval     time.Duration
	MaxAttempts  int
	CheckTimeout time.Duration
}

// Checker reports whether the mail provider is reachable.
type Checker func(ctx context.Context) error

// Mailer sends through a Sender and falls back to the offline queue when the
// send fails. A background worker retries queued messages with exponential backoff.
type Mailer struct {
	sender Sender
	queue  *Queue
	opts   Options
	check  Checker
	log    *logger.Logger
	now    func() time.Time

	drainMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(sender Sender, queue *Queue, opts Options, log *logger.Logger) *Mailer {
	m := &Mailer{
		sender: sender,
		queue:  queue,
		opts:   opts,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	m.check = TCPCheck(sender.CheckAddr(), opts.CheckTimeout)
	return m
}

// TCPCheck dials addr. An empty addr always succeeds.
func TCPCheck(addr string, timeout time.Duration) Checker {
	return func(ctx context.Context) error {
		if addr == "" {
			return nil
		}
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// Send tries the sender once. If that fails the message is queued and Send
// still succeeds with Result.Queued set. It fails only when queueing fails too.
func (m *Mailer) Send(ctx context.Context, msg Message) (Result, error) {
	if len(msg.To) == 0 {
		return Result{}, ErrNoRecipients
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := m.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	err := m.sender.Send(ctx, &msg)
	if err == nil {
		m.log.Debug("Email sent", "id", msg.ID, "subject", msg.Subject, "provider", m.sender.Name())
		return Result{ID: msg.ID}, nil
	}

	msg.Attempts = 1
	msg.LastError = err.Error()
	msg.NextAttemptAt = now.Add(m.backoff(msg.Attempts))
	if qErr := m.queue.Enqueue(msg); qErr != nil {
		return Result{}, fmt.Errorf("send failed (%v) and queueing failed: %w", err, qErr)
	}

	m.log.Warn("Email send failed, queued for retry",
		"id", msg.ID,
		"subject", msg.Subject,
		"provider", m.sender.Name(),
		"next_attempt_at", msg.NextAttemptAt,
		"error", err,
	)
	return Result{ID: msg.ID, Queued: true}, nil
}

// backoff is interval * 2^attempts, capped at an hour.
func (m *Mailer) backoff(attempts int) time.Duration {
	d := m.opts.Interval
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return min(d, maxBackoff)
}

// Start runs the retry worker until Stop is called or ctx ends.
func (m *Mailer) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.tick(ctx)
			}
		}
	}()
	m.log.Info("Mail queue worker started",
		"queue_file", m.queue.Path(),
		"pending", m.queue.Len(),
		"interval", m.opts.Interval,
	)
}

func (m *Mailer) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *Mailer) tick(ctx context.Context) {
	if m.queue.Len() == 0 {
		return
	}
	checkCtx, cancel := context.WithTimeout(ctx, m.opts.CheckTimeout)
	err := m.check(checkCtx)
	cancel()
	if err != nil {
		m.log.Debug("Mail provider unreachable, skipping queue drain", "provider", m.sender.Name(), "error", err)
		return
	}
	m.Drain(ctx)
}

// Flush drains the queue once, ignoring backoff schedules. It is meant for shutdown.
func (m *Mailer) Flush(ctx context.Context) {
	if m.queue.Len() == 0 {
		return
	}
	if err := m.check(ctx); err != nil {
		m.log.Warn("Mail provider unreachable at shutdown, leaving queue on disk",
			"pending", m.queue.Len(), "error", err)
		return
	}
	m.drain(ctx, true)
}

// Drain sends every due message.
func (m *Mailer) Drain(ctx context.Context) (sent, failed int) {
	return m.drain(ctx, false)
}

func (m *Mailer) drain(ctx context.Context, all bool) (sent, failed int) {
	m.drainMu.Lock()
	defer m.drainMu.Unlock()

	cutoff := m.now()
	if all {
		cutoff = cutoff.Add(100 * 365 * 24 * time.Hour)
	}
	due := m.queue.Due(cutoff)
	for i := range due {
		if ctx.Err() != nil {
			return sent, failed
		}
		msg := due[i]

		if err := m.sender.Send(ctx, &msg); err != nil {
			failed++
			attempts := msg.Attempts + 1
			if attempts >= m.opts.MaxAttempts {
				m.log.Error("Email exceeded max attempts, moved to dead-letter file",
					"id", msg.ID, "attempts", attempts, "failed_file", m.queue.FailedPath(), "error", err)
				if buryErr := m.queue.Bury(msg.ID, attempts, err.Error()); buryErr != nil {
					m.log.Error("Failed to bury email", "id", msg.ID, "error", buryErr)
				}
				continue
			}
			next := m.now().Add(m.backoff(attempts))
			if rErr := m.queue.Reschedule(msg.ID, attempts, next, err.Error()); rErr != nil {
				m.log.Error("Failed to reschedule email", "id", msg.ID, "error", rErr)
			}
			continue
		}

		sent++
		if err := m.queue.Remove(msg.ID); err != nil {
			m.log.Error("Failed to remove sent email from queue", "id", msg.ID, "error", err)
		}
	}

	if sent > 0 || failed > 0 {
		m.log.Info("Mail queue drained", "sent", sent, "failed", failed, "pending", m.queue.Len())
	}
	return sent, failed
}

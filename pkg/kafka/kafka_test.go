package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("booking-1").
		WithValue(map[string]string{"status": "booked"}).
		WithEventType("booking.confirmed").
		WithSource("driveo-api").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if msg.GetEventID() == "" {
		t.Error("Build() should assign an event id")
	}
	if msg.Headers[HeaderTimestamp] == "" {
		t.Error("Build() should stamp the timestamp header")
	}

	var payload map[string]string
	if err := msg.DecodeValue(&payload); err != nil || payload["status"] != "booked" {
		t.Errorf("DecodeValue() = %v, %v", payload, err)
	}
}

func TestMessageBuilder_EncodeError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if err == nil {
		t.Fatal("expected an encoding error")
	}
	if ClassifyError(err) != ErrorTypePermanent {
		t.Error("encoding errors are permanent")
	}
}

func TestRetryCount(t *testing.T) {
	msg := Message{}
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	if got := msg.GetRetryCount(); got != 12 {
		t.Errorf("GetRetryCount() = %d, want 12", got)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"deadline", context.DeadlineExceeded, ErrorTypeTransient},
		{"wrapped deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), ErrorTypeTransient},
		{"connection refused", errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{"explicit transient", NewTransientError("smtp down", nil), ErrorTypeTransient},
		{"explicit permanent", NewPermanentError("bad payload", nil), ErrorTypePermanent},
		{"unknown", errors.New("something odd"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	transient := NewTransientError("timeout", nil)
	if !ShouldRetry(transient, 0, 3) {
		t.Error("transient errors under the limit are retried")
	}
	if ShouldRetry(transient, 3, 3) {
		t.Error("retries stop at the limit")
	}
	if ShouldRetry(NewPermanentError("bad", nil), 0, 3) {
		t.Error("permanent errors are not retried")
	}
}

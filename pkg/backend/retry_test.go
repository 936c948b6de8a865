package backend

import (
	"errors"
	"testing"
	"time"
)

func TestRetryClassification(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		err     error
		attempt int
		want    bool
	}{
		{errors.New("dial tcp: connection refused"), 1, true},
		{errors.New("read: connection reset by peer"), 2, true},
		{errors.New("i/o timeout"), 1, true},
		{errors.New("401 unauthorized"), 1, false},
		{errors.New("invalid request body"), 1, false},
		{errors.New("context canceled"), 1, false},
		{errors.New("connection refused"), 3, false}, // attempts exhausted
		{nil, 1, false},
	}

	for _, tt := range tests {
		if got := p.ShouldRetry(tt.err, tt.attempt); got != tt.want {
			t.Errorf("ShouldRetry(%v, %d) = %v, want %v", tt.err, tt.attempt, got, tt.want)
		}
	}
}

func TestRetryDelayBackoff(t *testing.T) {
	p := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     300 * time.Millisecond,
	}

	if d := p.Delay(1); d != 100*time.Millisecond {
		t.Errorf("first delay = %v", d)
	}
	if d := p.Delay(2); d != 200*time.Millisecond {
		t.Errorf("second delay = %v", d)
	}
	if d := p.Delay(4); d != 300*time.Millisecond {
		t.Errorf("delay not capped: %v", d)
	}
}

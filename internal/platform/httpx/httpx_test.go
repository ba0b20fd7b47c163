package httpx

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestExpBackoffBounds(t *testing.T) {
	base := 600 * time.Millisecond
	jitter := 250 * time.Millisecond
	for attempt := 0; attempt < 5; attempt++ {
		want := base * time.Duration(1<<uint(attempt))
		for i := 0; i < 50; i++ {
			got := ExpBackoff(base, attempt, jitter)
			if got < want || got >= want+jitter {
				t.Fatalf("attempt %d: want in [%v,%v) got=%v", attempt, want, want+jitter, got)
			}
		}
	}
	if got := ExpBackoff(0, 3, jitter); got != 0 {
		t.Fatalf("zero base: want=0 got=%v", got)
	}
}

func TestStatusErrorClassification(t *testing.T) {
	resp := &http.Response{StatusCode: 429, Header: http.Header{"Retry-After": []string{"3"}}}
	se := NewStatusError("vertex", resp, []byte("quota"))
	wrapped := fmt.Errorf("embed: %w", se)
	if StatusCode(wrapped) != 429 {
		t.Fatalf("StatusCode: want=429 got=%d", StatusCode(wrapped))
	}
	if !IsRetryableError(wrapped) {
		t.Fatalf("IsRetryableError: want=true")
	}
	if se.RetryAfter != 3*time.Second {
		t.Fatalf("RetryAfter: want=3s got=%v", se.RetryAfter)
	}
	if IsRetryableError(context.Canceled) {
		t.Fatalf("canceled should not be retryable")
	}
}

func TestSleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); err == nil {
		t.Fatalf("Sleep: want ctx error")
	}
}

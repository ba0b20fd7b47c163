package temporalx

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestClampBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{10, 2 * time.Second},
	}
	for _, tc := range cases {
		if got := ClampBackoff(250*time.Millisecond, 2*time.Second, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: want=%v got=%v", tc.attempt, tc.want, got)
		}
	}
}

func TestIsRetryableRPC(t *testing.T) {
	if !IsRetryableRPC(status.Error(codes.Unavailable, "down")) {
		t.Fatalf("Unavailable should retry")
	}
	if IsRetryableRPC(status.Error(codes.PermissionDenied, "no")) {
		t.Fatalf("PermissionDenied should not retry")
	}
	if !IsRetryableRPC(context.DeadlineExceeded) {
		t.Fatalf("deadline should retry")
	}
	if IsRetryableRPC(errors.New("boom")) || IsRetryableRPC(nil) {
		t.Fatalf("plain errors should not retry")
	}
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	c, err := NewClient(nil, Config{})
	if c != nil || err != nil {
		t.Fatalf("NewClient: want nil,nil got=%v,%v", c, err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "")
	t.Setenv("REBUILD_TEXT_CRON", "")
	cfg := LoadConfig()
	if cfg.Namespace != "catalog-search" || cfg.TaskQueue != "catalog-search" {
		t.Fatalf("defaults: got=%+v", cfg)
	}
	if cfg.TextRebuildCron == "" || cfg.DialTimeout != 5*time.Second {
		t.Fatalf("defaults: got=%+v", cfg)
	}
}

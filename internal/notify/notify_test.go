package notify

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-meme-report/internal/regen"
)

func TestNew_NoURLsIsNop(t *testing.T) {
	n, err := New(nil, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := n.(Nop); !ok {
		t.Fatalf("expected Nop, got %T", n)
	}
	if err := n.ReportReady(context.Background(), regen.Artifact{}); err != nil {
		t.Fatalf("Nop should never fail: %v", err)
	}
}

func TestNewShoutrrr_RejectsUnknownService(t *testing.T) {
	if _, err := NewShoutrrr([]string{"nosuchservice://token@host"}, time.Second); err == nil {
		t.Fatalf("expected error for unknown service scheme")
	}
	if _, err := NewShoutrrr(nil, time.Second); err == nil {
		t.Fatalf("expected error for empty url list")
	}
}

func TestShoutrrr_ReportReady_LoggerService(t *testing.T) {
	n, err := New([]string{"logger://"}, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := n.(*Shoutrrr); !ok {
		t.Fatalf("expected *Shoutrrr, got %T", n)
	}
	a := regen.Artifact{ID: "a1", Name: "report", Path: "reports/report.html", ProducedAt: time.Now()}
	if err := n.ReportReady(context.Background(), a); err != nil {
		t.Fatalf("ReportReady: %v", err)
	}
}

func TestShoutrrr_ReportReady_CancelledContext(t *testing.T) {
	n, err := NewShoutrrr([]string{"logger://"}, time.Second)
	if err != nil {
		t.Fatalf("NewShoutrrr: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.ReportReady(ctx, regen.Artifact{}); err == nil {
		t.Fatalf("expected context error")
	}
}

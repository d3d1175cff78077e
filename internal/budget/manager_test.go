package budget

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/haasonsaas/toolhub/pkg/models"
)

func TestRateLimitAdmission(t *testing.T) {
	clock := time.Now()
	m := NewManager(Config{
		DefaultRatePerSecond: 1,
		DefaultBurst:         2,
	}).WithClock(func() time.Time { return clock })

	if !m.CheckRateLimit("a/b") || !m.CheckRateLimit("a/b") {
		t.Fatal("burst of 2 should admit two calls")
	}
	if m.CheckRateLimit("a/b") {
		t.Fatal("third call should be rate limited")
	}

	// Advance the clock one second: one token refills.
	clock = clock.Add(time.Second)
	if !m.CheckRateLimit("a/b") {
		t.Error("refilled token should admit")
	}

	// Other tools have independent buckets.
	if !m.CheckRateLimit("c/d") {
		t.Error("separate tool should have its own bucket")
	}
}

func TestAdmitReturnsBudgetExceeded(t *testing.T) {
	clock := time.Now()
	m := NewManager(Config{DefaultRatePerSecond: 1, DefaultBurst: 1}).
		WithClock(func() time.Time { return clock })

	if err := m.Admit("x/y"); err != nil {
		t.Fatalf("first call should be admitted: %v", err)
	}
	err := m.Admit("x/y")
	if err == nil {
		t.Fatal("expected refusal")
	}
	te, ok := err.(*models.ToolError)
	if !ok || te.Kind != models.ErrBudgetExceeded {
		t.Fatalf("expected BUDGET_EXCEEDED, got %v", err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	m := NewManager(Config{
		DefaultRatePerSecond: 1000,
		DefaultBurst:         1000,
		BreakerMaxFailures:   3,
		BreakerCooldownMs:    50,
	})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if _, err := m.Execute("flaky/tool", func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if state := m.BreakerState("flaky/tool"); state != gobreaker.StateOpen {
		t.Fatalf("breaker should be open, got %v", state)
	}

	// While open, Execute refuses with BUDGET_EXCEEDED and Admit rejects.
	if _, err := m.Execute("flaky/tool", func() (any, error) { return "ok", nil }); err == nil {
		t.Fatal("open breaker should refuse")
	} else if te, ok := err.(*models.ToolError); !ok || te.Kind != models.ErrBudgetExceeded {
		t.Fatalf("expected BUDGET_EXCEEDED, got %v", err)
	}
	if err := m.Admit("flaky/tool"); err == nil {
		t.Error("Admit should reject while breaker is open")
	}

	// After the cooldown a trial call half-opens and a success closes it.
	time.Sleep(60 * time.Millisecond)
	if _, err := m.Execute("flaky/tool", func() (any, error) { return "ok", nil }); err != nil {
		t.Fatalf("trial call should run: %v", err)
	}
	if state := m.BreakerState("flaky/tool"); state != gobreaker.StateClosed {
		t.Errorf("breaker should close after trial success, got %v", state)
	}
}

func TestGetTimeoutPrecedence(t *testing.T) {
	m := NewManager(Config{
		DefaultTimeoutMs: 30000,
		Tools: map[string]ToolLimits{
			"slow/tool": {TimeoutMs: 120000},
		},
	})

	if got := m.GetTimeout("slow/tool", 5*time.Second); got != 5*time.Second {
		t.Errorf("override should win, got %v", got)
	}
	if got := m.GetTimeout("slow/tool", 0); got != 120*time.Second {
		t.Errorf("per-tool limit should apply, got %v", got)
	}
	if got := m.GetTimeout("other/tool", 0); got != 30*time.Second {
		t.Errorf("global default should apply, got %v", got)
	}
}

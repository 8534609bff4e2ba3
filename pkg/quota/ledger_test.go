package quota_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/replyforge/replyforge/pkg/quota"
	"github.com/replyforge/replyforge/storage/memory"
)

func newTestLedger(t *testing.T, limits quota.Limits, now func() time.Time) (*quota.Ledger, *memory.Store) {
	t.Helper()

	store := memory.New()
	ledger, err := quota.NewLedger(store, store, quota.Config{
		Limits: limits,
		Now:    now,
	})
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	return ledger, store
}

func TestNewLedger(t *testing.T) {
	store := memory.New()

	ledger, err := quota.NewLedger(store, store, quota.Config{})
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	if ledger == nil {
		t.Fatal("Expected non-nil ledger")
	}

	if _, err := quota.NewLedger(nil, store, quota.Config{}); err != quota.ErrStorageUnavailable {
		t.Errorf("Expected ErrStorageUnavailable for nil anonymous store, got %v", err)
	}
	if _, err := quota.NewLedger(store, nil, quota.Config{}); err != quota.ErrStorageUnavailable {
		t.Errorf("Expected ErrStorageUnavailable for nil user store, got %v", err)
	}
}

func TestLedger_AnonymousExhaustion(t *testing.T) {
	ledger, _ := newTestLedger(t, quota.DefaultLimits(), nil)
	ctx := context.Background()
	visitor := quota.Anonymous{SessionID: "sess-1"}

	for i := 1; i <= 5; i++ {
		decision, err := ledger.CheckAndIncrement(ctx, visitor)
		if err != nil {
			t.Fatalf("CheckAndIncrement %d failed: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("Request %d should be allowed", i)
		}
		if decision.Used != i {
			t.Errorf("Request %d: used = %d, want %d", i, decision.Used, i)
		}
	}

	// Sixth request is rejected and must not move the counter.
	decision, err := ledger.CheckAndIncrement(ctx, visitor)
	if err != nil {
		t.Fatalf("CheckAndIncrement failed: %v", err)
	}
	if decision.Allowed {
		t.Error("Sixth anonymous request should be rejected")
	}
	if decision.Used != 5 {
		t.Errorf("Rejected decision used = %d, want 5", decision.Used)
	}
	if decision.Limit == nil || *decision.Limit != 5 {
		t.Errorf("Rejected decision limit = %v, want 5", decision.Limit)
	}

	snap, err := ledger.Peek(ctx, visitor)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if snap.Used != 5 {
		t.Errorf("Counter after rejection = %d, want 5", snap.Used)
	}
}

func TestLedger_FreeUserExhaustion(t *testing.T) {
	ledger, _ := newTestLedger(t, quota.Limits{Anonymous: 5, Free: 3, ProSafetyCap: 1000}, nil)
	ctx := context.Background()
	user := quota.Authenticated{UserID: "user-1", Tier: quota.TierFree}

	for i := 1; i <= 3; i++ {
		decision, err := ledger.CheckAndIncrement(ctx, user)
		if err != nil {
			t.Fatalf("CheckAndIncrement %d failed: %v", i, err)
		}
		if !decision.Allowed || decision.Used != i {
			t.Fatalf("Request %d: allowed=%v used=%d", i, decision.Allowed, decision.Used)
		}
	}

	decision, err := ledger.CheckAndIncrement(ctx, user)
	if err != nil {
		t.Fatalf("CheckAndIncrement failed: %v", err)
	}
	if decision.Allowed {
		t.Error("Request past the free limit should be rejected")
	}
	if decision.Used != 3 {
		t.Errorf("Rejected decision used = %d, want 3", decision.Used)
	}
}

func TestLedger_ProSafetyCap(t *testing.T) {
	ledger, _ := newTestLedger(t, quota.Limits{Anonymous: 5, Free: 20, ProSafetyCap: 2}, nil)
	ctx := context.Background()
	pro := quota.Authenticated{UserID: "pro-1", Tier: quota.TierPro}

	for i := 1; i <= 2; i++ {
		decision, err := ledger.CheckAndIncrement(ctx, pro)
		if err != nil {
			t.Fatalf("CheckAndIncrement %d failed: %v", i, err)
		}
		if !decision.Allowed {
			t.Fatalf("Pro request %d should be allowed", i)
		}
		// No displayed limit for pro, ever.
		if decision.Limit != nil {
			t.Errorf("Pro decision limit = %v, want nil", *decision.Limit)
		}
		if !decision.Pro {
			t.Error("Pro decision should carry the pro flag")
		}
	}

	// The safety cap still stops the flow, without surfacing a limit.
	decision, err := ledger.CheckAndIncrement(ctx, pro)
	if err != nil {
		t.Fatalf("CheckAndIncrement failed: %v", err)
	}
	if decision.Allowed {
		t.Error("Request past the safety cap should be rejected")
	}
	if decision.Limit != nil {
		t.Errorf("Rejected pro decision limit = %v, want nil", *decision.Limit)
	}

	snap := decision.Snapshot()
	if snap.Remaining != nil {
		t.Errorf("Pro snapshot remaining = %v, want nil", *snap.Remaining)
	}
}

func TestLedger_DayRollover(t *testing.T) {
	current := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	ledger, _ := newTestLedger(t, quota.Limits{Anonymous: 2, Free: 20, ProSafetyCap: 1000}, now)
	ctx := context.Background()
	visitor := quota.Anonymous{SessionID: "sess-midnight"}

	for i := 0; i < 2; i++ {
		if _, err := ledger.CheckAndIncrement(ctx, visitor); err != nil {
			t.Fatalf("CheckAndIncrement failed: %v", err)
		}
	}
	decision, _ := ledger.CheckAndIncrement(ctx, visitor)
	if decision.Allowed {
		t.Fatal("Request past the limit should be rejected")
	}

	// Two minutes later it is the next UTC day and the key changes,
	// so the counter starts fresh.
	mu.Lock()
	current = current.Add(2 * time.Minute)
	mu.Unlock()

	decision, err := ledger.CheckAndIncrement(ctx, visitor)
	if err != nil {
		t.Fatalf("CheckAndIncrement failed: %v", err)
	}
	if !decision.Allowed {
		t.Error("First request of the new day should be allowed")
	}
	if decision.Used != 1 {
		t.Errorf("New day used = %d, want 1", decision.Used)
	}
}

func TestLedger_IndependentKeys(t *testing.T) {
	ledger, _ := newTestLedger(t, quota.Limits{Anonymous: 1, Free: 1, ProSafetyCap: 1000}, nil)
	ctx := context.Background()

	// Exhausting one identity leaves every other identity untouched.
	first := quota.Anonymous{SessionID: "sess-a"}
	if _, err := ledger.CheckAndIncrement(ctx, first); err != nil {
		t.Fatalf("CheckAndIncrement failed: %v", err)
	}
	if d, _ := ledger.CheckAndIncrement(ctx, first); d.Allowed {
		t.Fatal("sess-a should be exhausted")
	}

	second := quota.Anonymous{SessionID: "sess-b"}
	if d, _ := ledger.CheckAndIncrement(ctx, second); !d.Allowed {
		t.Error("sess-b should be unaffected by sess-a")
	}

	user := quota.Authenticated{UserID: "user-b", Tier: quota.TierFree}
	if d, _ := ledger.CheckAndIncrement(ctx, user); !d.Allowed {
		t.Error("user-b should be unaffected by anonymous counters")
	}
}

func TestLedger_PeekDoesNotConsume(t *testing.T) {
	ledger, _ := newTestLedger(t, quota.DefaultLimits(), nil)
	ctx := context.Background()
	user := quota.Authenticated{UserID: "user-peek", Tier: quota.TierFree}

	for i := 0; i < 10; i++ {
		snap, err := ledger.Peek(ctx, user)
		if err != nil {
			t.Fatalf("Peek failed: %v", err)
		}
		if snap.Used != 0 {
			t.Fatalf("Peek consumed quota: used = %d", snap.Used)
		}
	}

	snap, err := ledger.Peek(ctx, user)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if snap.Limit == nil || *snap.Limit != 20 {
		t.Errorf("Free snapshot limit = %v, want 20", snap.Limit)
	}
	if snap.Remaining == nil || *snap.Remaining != 20 {
		t.Errorf("Free snapshot remaining = %v, want 20", snap.Remaining)
	}
}

func TestLedger_ConcurrentExactness(t *testing.T) {
	const limit = 10
	const workers = 50

	ledger, _ := newTestLedger(t, quota.Limits{Anonymous: limit, Free: limit, ProSafetyCap: 1000}, nil)
	ctx := context.Background()

	for _, id := range []quota.Identity{
		quota.Anonymous{SessionID: "sess-race"},
		quota.Authenticated{UserID: "user-race", Tier: quota.TierFree},
	} {
		id := id
		t.Run(id.TierName(), func(t *testing.T) {
			var wg sync.WaitGroup
			var mu sync.Mutex
			allowed := 0

			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					decision, err := ledger.CheckAndIncrement(ctx, id)
					if err != nil {
						t.Errorf("CheckAndIncrement failed: %v", err)
						return
					}
					if decision.Allowed {
						mu.Lock()
						allowed++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if allowed != limit {
				t.Errorf("Allowed %d concurrent requests, want exactly %d", allowed, limit)
			}

			snap, err := ledger.Peek(ctx, id)
			if err != nil {
				t.Fatalf("Peek failed: %v", err)
			}
			if snap.Used != limit {
				t.Errorf("Counter = %d, want exactly %d", snap.Used, limit)
			}
		})
	}
}

func TestDecision_Snapshot(t *testing.T) {
	five := 5

	tests := []struct {
		name          string
		decision      quota.Decision
		wantRemaining *int
	}{
		{
			name:          "under the limit",
			decision:      quota.Decision{Allowed: true, Used: 2, Limit: &five},
			wantRemaining: intPtr(3),
		},
		{
			name:          "at the limit",
			decision:      quota.Decision{Allowed: false, Used: 5, Limit: &five},
			wantRemaining: intPtr(0),
		},
		{
			name:          "over the limit clamps to zero",
			decision:      quota.Decision{Allowed: false, Used: 7, Limit: &five},
			wantRemaining: intPtr(0),
		},
		{
			name:          "pro has no remaining",
			decision:      quota.Decision{Allowed: true, Used: 40, Pro: true},
			wantRemaining: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := tt.decision.Snapshot()
			switch {
			case tt.wantRemaining == nil && snap.Remaining != nil:
				t.Errorf("Remaining = %d, want nil", *snap.Remaining)
			case tt.wantRemaining != nil && snap.Remaining == nil:
				t.Errorf("Remaining = nil, want %d", *tt.wantRemaining)
			case tt.wantRemaining != nil && *snap.Remaining != *tt.wantRemaining:
				t.Errorf("Remaining = %d, want %d", *snap.Remaining, *tt.wantRemaining)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/permgate-org/permgate/pkg/events"
	"github.com/permgate-org/permgate/pkg/store"
	"github.com/permgate-org/permgate/pkg/types"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestStore(t *testing.T) (*Store, *store.MemoryStore, *events.Bus) {
	t.Helper()
	kv := store.NewMemoryStore()
	bus := events.NewBus()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(kv, bus, clock, nil), kv, bus
}

func customProfile() types.PermissionProfile {
	return types.PermissionProfile{
		Name:            "Custom",
		Description:     "test profile",
		DefaultDecision: types.DecisionPrompt,
		SecurityLevel:   types.LevelCustom,
		Rules: []types.PermissionRule{
			{
				Name:        "Allow reading go files",
				Description: "go source is safe",
				Operation:   types.OpRead,
				Scope:       types.ScopeFile,
				Decision:    types.DecisionAllow,
				RiskLevel:   types.RiskLow,
				Priority:    100,
				Enabled:     true,
				Conditions: []types.RuleCondition{
					{Type: types.CondFileExtension, Operator: types.OperatorEquals, Value: "go"},
				},
			},
		},
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	id, err := s.Create(ctx, customProfile())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err := s.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Name != "Custom" || p.Version != 1 {
		t.Fatalf("unexpected profile %+v", p)
	}
	if p.Rules[0].ID == "" {
		t.Fatalf("expected rule id to be assigned")
	}

	if _, err := s.Get("prf_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	id, _ := s.Create(ctx, customProfile())

	p, _ := s.Get(id)
	p.Name = "mutated"
	p.Rules[0].Decision = types.DecisionDeny

	again, _ := s.Get(id)
	if again.Name != "Custom" || again.Rules[0].Decision != types.DecisionAllow {
		t.Fatalf("caller mutation leaked into store: %+v", again)
	}
}

func TestStoreUpdateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	id, _ := s.Create(ctx, customProfile())

	name := "Renamed"
	if err := s.Update(ctx, id, ProfileUpdate{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}

	p, _ := s.Get(id)
	if p.Name != "Renamed" {
		t.Fatalf("expected renamed profile, got %s", p.Name)
	}
	if p.Version != 2 {
		t.Fatalf("expected version 2, got %d", p.Version)
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	id, _ := s.Create(ctx, customProfile())

	if err := s.SetActive(ctx, id); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.ActiveID() != "" {
		t.Fatalf("expected active pointer cleared after deleting active profile")
	}
	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoreSetActiveSwitches(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	first, _ := s.Create(ctx, customProfile())
	second, _ := s.Create(ctx, customProfile())

	if err := s.SetActive(ctx, first); err != nil {
		t.Fatalf("activate first: %v", err)
	}
	if err := s.SetActive(ctx, second); err != nil {
		t.Fatalf("activate second: %v", err)
	}

	p1, _ := s.Get(first)
	p2, _ := s.Get(second)
	if p1.IsActive {
		t.Fatalf("expected first profile deactivated")
	}
	if !p2.IsActive {
		t.Fatalf("expected second profile active")
	}
	if s.ActiveID() != second {
		t.Fatalf("unexpected active id %s", s.ActiveID())
	}

	active, ok := s.Active()
	if !ok || active.ID != second {
		t.Fatalf("Active() returned %v %v", active, ok)
	}
}

func TestStoreBuiltInImmutability(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	if err := EnsureBuiltins(ctx, s); err != nil {
		t.Fatalf("ensure builtins: %v", err)
	}

	var builtin *types.PermissionProfile
	for _, p := range s.List() {
		if p.IsBuiltIn {
			builtin = p
			break
		}
	}
	if builtin == nil {
		t.Fatalf("expected a built-in profile")
	}

	if _, err := s.AddRule(ctx, builtin.ID, customProfile().Rules[0]); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden adding rule to built-in, got %v", err)
	}
	if err := s.DeleteRule(ctx, builtin.ID, builtin.Rules[0].ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden deleting rule of built-in, got %v", err)
	}
	enabled := false
	if err := s.UpdateRule(ctx, builtin.ID, builtin.Rules[0].ID, RuleUpdate{Enabled: &enabled}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden updating rule of built-in, got %v", err)
	}
	rules := []types.PermissionRule{}
	if err := s.Update(ctx, builtin.ID, ProfileUpdate{Rules: &rules}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden replacing rules of built-in, got %v", err)
	}
	if err := s.Delete(ctx, builtin.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden deleting built-in, got %v", err)
	}

	// Metadata updates stay allowed.
	desc := "tightened description"
	if err := s.Update(ctx, builtin.ID, ProfileUpdate{Description: &desc}); err != nil {
		t.Fatalf("metadata update of built-in should succeed: %v", err)
	}
}

func TestStoreRuleLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	id, _ := s.Create(ctx, customProfile())

	rule := types.PermissionRule{
		Name:        "Deny deleting configs",
		Description: "configs require confirmation",
		Operation:   types.OpDelete,
		Scope:       types.ScopeFile,
		Decision:    types.DecisionDeny,
		RiskLevel:   types.RiskHigh,
		Priority:    300,
		Enabled:     true,
		Conditions: []types.RuleCondition{
			{Type: types.CondFileExtension, Operator: types.OperatorEquals, Value: "yaml"},
		},
	}
	ruleID, err := s.AddRule(ctx, id, rule)
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}

	priority := 400
	if err := s.UpdateRule(ctx, id, ruleID, RuleUpdate{Priority: &priority}); err != nil {
		t.Fatalf("update rule: %v", err)
	}

	p, _ := s.Get(id)
	found := false
	for _, r := range p.Rules {
		if r.ID == ruleID {
			found = true
			if r.Priority != 400 {
				t.Fatalf("expected priority 400, got %d", r.Priority)
			}
		}
	}
	if !found {
		t.Fatalf("added rule not present")
	}

	if err := s.DeleteRule(ctx, id, ruleID); err != nil {
		t.Fatalf("delete rule: %v", err)
	}
	if err := s.DeleteRule(ctx, id, ruleID); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestStorePersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	s1 := NewStore(kv, events.NewBus(), clock, nil)
	id, err := s1.Create(ctx, customProfile())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s1.SetActive(ctx, id); err != nil {
		t.Fatalf("set active: %v", err)
	}

	s2 := NewStore(kv, events.NewBus(), clock, nil)
	if err := s2.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	p, err := s2.Get(id)
	if err != nil {
		t.Fatalf("get after reload: %v", err)
	}
	if p.Name != "Custom" || !p.IsActive {
		t.Fatalf("unexpected reloaded profile %+v", p)
	}
	if s2.ActiveID() != id {
		t.Fatalf("active pointer lost across reload")
	}
}

func TestStoreLoadFreshInstall(t *testing.T) {
	s, _, _ := newTestStore(t)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load on empty kv should succeed: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("expected no profiles")
	}
}

func TestStoreChangeEvents(t *testing.T) {
	ctx := context.Background()
	s, _, bus := newTestStore(t)

	var got []events.ChangeEvent
	bus.OnChange(func(evt events.ChangeEvent) { got = append(got, evt) })

	id, _ := s.Create(ctx, customProfile())
	_ = s.SetActive(ctx, id)

	if len(got) != 2 {
		t.Fatalf("expected 2 change events, got %d", len(got))
	}
	if got[0].Type != "profile_created" || got[1].Type != "profile_activated" {
		t.Fatalf("unexpected event types %s %s", got[0].Type, got[1].Type)
	}
}

func TestStoreChangeSubscriberReadsBack(t *testing.T) {
	ctx := context.Background()
	s, _, bus := newTestStore(t)

	// Subscribers run synchronously on the mutating goroutine and may
	// read the store; mutators must not hold the lock while publishing.
	var seen []int
	bus.OnChange(func(evt events.ChangeEvent) {
		if _, err := s.Get(evt.ProfileID); err != nil && evt.Type != "profile_deleted" {
			t.Errorf("get %s inside %s handler: %v", evt.ProfileID, evt.Type, err)
		}
		seen = append(seen, len(s.List()))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		id, err := s.Create(ctx, customProfile())
		if err != nil {
			t.Errorf("create: %v", err)
			return
		}
		name := "Renamed"
		_ = s.Update(ctx, id, ProfileUpdate{Name: &name})
		_ = s.SetActive(ctx, id)
		ruleID, _ := s.AddRule(ctx, id, customProfile().Rules[0])
		enabled := false
		_ = s.UpdateRule(ctx, id, ruleID, RuleUpdate{Enabled: &enabled})
		_ = s.DeleteRule(ctx, id, ruleID)
		_ = s.Delete(ctx, id)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("store mutation blocked while a subscriber read the store")
	}
	if len(seen) != 7 {
		t.Fatalf("expected 7 change events, got %d", len(seen))
	}
}

func TestEnsureBuiltinsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	if err := EnsureBuiltins(ctx, s); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := EnsureBuiltins(ctx, s); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	profiles := s.List()
	if len(profiles) != 3 {
		t.Fatalf("expected 3 built-in profiles, got %d", len(profiles))
	}

	levels := map[types.SecurityLevel]*types.PermissionProfile{}
	for _, p := range profiles {
		levels[p.SecurityLevel] = p
	}
	conservative, ok := levels[types.LevelConservative]
	if !ok {
		t.Fatalf("missing conservative profile")
	}
	if !conservative.IsActive || s.ActiveID() != conservative.ID {
		t.Fatalf("expected conservative active by default")
	}
	if levels[types.LevelPermissive].DefaultDecision != types.DecisionAllow {
		t.Fatalf("expected permissive default decision allow")
	}
	if levels[types.LevelBalanced].DefaultDecision != types.DecisionPrompt {
		t.Fatalf("expected balanced default decision prompt")
	}
}

func TestEnsureBuiltinsKeepsExistingActive(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	id, _ := s.Create(ctx, customProfile())
	if err := s.SetActive(ctx, id); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := EnsureBuiltins(ctx, s); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if s.ActiveID() != id {
		t.Fatalf("ensure overrode user's active profile")
	}
}

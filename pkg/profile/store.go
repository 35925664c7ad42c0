package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/permgate-org/permgate/pkg/events"
	"github.com/permgate-org/permgate/pkg/metrics"
	"github.com/permgate-org/permgate/pkg/store"
	"github.com/permgate-org/permgate/pkg/types"
)

var (
	ErrNotFound     = errors.New("profile not found")
	ErrRuleNotFound = errors.New("rule not found")
	ErrForbidden    = errors.New("built-in profile cannot be modified")
)

// storageKey is the KV document this store owns.
const storageKey = "profiles"

// Store owns every profile and the active-profile pointer. Rules have no
// lifecycle outside their profile. All reads return deep copies so callers
// can never mutate stored state in place.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*types.PermissionProfile
	order    []string // insertion order, drives deterministic listing
	activeID string

	kv    store.KV
	bus   *events.Bus
	clock types.Clock
	log   *slog.Logger
}

func NewStore(kv store.KV, bus *events.Bus, clock types.Clock, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &Store{
		profiles: make(map[string]*types.PermissionProfile),
		kv:       kv,
		bus:      bus,
		clock:    clock,
		log:      logger,
	}
}

// persistedProfiles is the document shape written to the KV collaborator.
type persistedProfiles struct {
	Profiles        []*types.PermissionProfile `json:"profiles"`
	ActiveProfileID string                     `json:"active_profile_id,omitempty"`
}

// Load hydrates the store from the KV collaborator. A missing document
// means a fresh install and is not an error.
func (s *Store) Load(ctx context.Context) error {
	data, err := s.kv.Get(ctx, storageKey)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Info("no persisted profiles, starting fresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	var doc persistedProfiles
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse profiles: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = make(map[string]*types.PermissionProfile, len(doc.Profiles))
	s.order = s.order[:0]
	for _, p := range doc.Profiles {
		s.profiles[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	s.activeID = doc.ActiveProfileID
	metrics.ProfilesLoaded.Set(float64(len(s.profiles)))
	s.log.Info("profiles loaded", "count", len(doc.Profiles), "active", s.activeID)
	return nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	doc := persistedProfiles{ActiveProfileID: s.activeID}
	for _, id := range s.order {
		doc.Profiles = append(doc.Profiles, s.profiles[id])
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, storageKey, data)
}

// emitChange publishes a change event. Always called after the store lock
// is released so subscribers may call back into the store.
func (s *Store) emitChange(eventType, profileID, ruleID string) {
	if s.bus == nil {
		return
	}
	s.bus.PublishChange(events.ChangeEvent{
		Type:      eventType,
		ProfileID: profileID,
		RuleID:    ruleID,
		Timestamp: s.clock.Now(),
	})
}

// Create adds a profile and returns its assigned id. Rule ids and
// timestamps are filled in for any rules supplied without them.
func (s *Store) Create(ctx context.Context, p types.PermissionProfile) (string, error) {
	now := s.clock.Now()
	p.ID = types.GenerateProfileID()
	p.CreatedAt = now
	p.ModifiedAt = now
	p.Version = 1
	p.IsActive = false
	for i := range p.Rules {
		if p.Rules[i].ID == "" {
			p.Rules[i].ID = types.GenerateRuleID()
		}
		if p.Rules[i].CreatedAt.IsZero() {
			p.Rules[i].CreatedAt = now
			p.Rules[i].ModifiedAt = now
		}
	}

	s.mu.Lock()
	s.profiles[p.ID] = &p
	s.order = append(s.order, p.ID)
	err := s.persistLocked(ctx)
	metrics.ProfilesLoaded.Set(float64(len(s.profiles)))
	s.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("persist profiles: %w", err)
	}

	s.emitChange("profile_created", p.ID, "")
	return p.ID, nil
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	Name            *string                 `json:"name,omitempty"`
	Description     *string                 `json:"description,omitempty"`
	DefaultDecision *types.Decision         `json:"default_decision,omitempty"`
	SecurityLevel   *types.SecurityLevel    `json:"security_level,omitempty"`
	IsDefault       *bool                   `json:"is_default,omitempty"`
	Rules           *[]types.PermissionRule `json:"rules,omitempty"`
}

// Update merges a partial update into a profile and bumps its version.
// Replacing the rule set of a built-in profile is forbidden.
func (s *Store) Update(ctx context.Context, id string, upd ProfileUpdate) error {
	s.mu.Lock()
	err := s.updateLocked(ctx, id, upd)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emitChange("profile_updated", id, "")
	return nil
}

func (s *Store) updateLocked(ctx context.Context, id string, upd ProfileUpdate) error {
	p, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("update profile %s: %w", id, ErrNotFound)
	}
	if p.IsBuiltIn && upd.Rules != nil {
		return fmt.Errorf("update profile %s: %w", id, ErrForbidden)
	}

	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.DefaultDecision != nil {
		p.DefaultDecision = *upd.DefaultDecision
	}
	if upd.SecurityLevel != nil {
		p.SecurityLevel = *upd.SecurityLevel
	}
	if upd.IsDefault != nil {
		p.IsDefault = *upd.IsDefault
	}
	if upd.Rules != nil {
		rules := make([]types.PermissionRule, len(*upd.Rules))
		now := s.clock.Now()
		for i, r := range *upd.Rules {
			if r.ID == "" {
				r.ID = types.GenerateRuleID()
				r.CreatedAt = now
			}
			r.ModifiedAt = now
			rules[i] = r.Clone()
		}
		p.Rules = rules
	}

	s.touchLocked(p)
	if err := s.persistLocked(ctx); err != nil {
		return fmt.Errorf("persist profiles: %w", err)
	}
	return nil
}

// Delete removes a profile. Built-in profiles cannot be deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.deleteLocked(ctx, id)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emitChange("profile_deleted", id, "")
	return nil
}

func (s *Store) deleteLocked(ctx context.Context, id string) error {
	p, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("delete profile %s: %w", id, ErrNotFound)
	}
	if p.IsBuiltIn {
		return fmt.Errorf("delete profile %s: %w", id, ErrForbidden)
	}

	delete(s.profiles, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeID == id {
		s.activeID = ""
	}
	if err := s.persistLocked(ctx); err != nil {
		return fmt.Errorf("persist profiles: %w", err)
	}
	metrics.ProfilesLoaded.Set(float64(len(s.profiles)))
	return nil
}

// Get returns a deep copy of a profile.
func (s *Store) Get(id string) (*types.PermissionProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("get profile %s: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

// List returns deep copies of all profiles in insertion order.
func (s *Store) List() []*types.PermissionProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.PermissionProfile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.profiles[id].Clone())
	}
	return out
}

// SetActive activates the target profile and deactivates the previous one.
func (s *Store) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.setActiveLocked(ctx, id)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emitChange("profile_activated", id, "")
	return nil
}

func (s *Store) setActiveLocked(ctx context.Context, id string) error {
	p, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("activate profile %s: %w", id, ErrNotFound)
	}

	if prev, ok := s.profiles[s.activeID]; ok && s.activeID != id {
		prev.IsActive = false
		s.touchLocked(prev)
	}
	p.IsActive = true
	s.touchLocked(p)
	s.activeID = id

	if err := s.persistLocked(ctx); err != nil {
		return fmt.Errorf("persist profiles: %w", err)
	}
	return nil
}

// Active returns a deep copy of the active profile, if any.
func (s *Store) Active() (*types.PermissionProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[s.activeID]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// ActiveID returns the id of the active profile, or "".
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// AddRule appends a rule to a non-built-in profile and returns the rule id.
func (s *Store) AddRule(ctx context.Context, profileID string, rule types.PermissionRule) (string, error) {
	s.mu.Lock()
	ruleID, err := s.addRuleLocked(ctx, profileID, rule)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	s.emitChange("rule_added", profileID, ruleID)
	return ruleID, nil
}

func (s *Store) addRuleLocked(ctx context.Context, profileID string, rule types.PermissionRule) (string, error) {
	p, ok := s.profiles[profileID]
	if !ok {
		return "", fmt.Errorf("add rule to profile %s: %w", profileID, ErrNotFound)
	}
	if p.IsBuiltIn {
		return "", fmt.Errorf("add rule to profile %s: %w", profileID, ErrForbidden)
	}

	now := s.clock.Now()
	rule.ID = types.GenerateRuleID()
	rule.CreatedAt = now
	rule.ModifiedAt = now
	p.Rules = append(p.Rules, rule.Clone())

	s.touchLocked(p)
	if err := s.persistLocked(ctx); err != nil {
		return "", fmt.Errorf("persist profiles: %w", err)
	}
	return rule.ID, nil
}

// RuleUpdate is a partial rule update; nil fields are left untouched.
type RuleUpdate struct {
	Name        *string                `json:"name,omitempty"`
	Description *string                `json:"description,omitempty"`
	Decision    *types.Decision        `json:"decision,omitempty"`
	RiskLevel   *types.RiskLevel       `json:"risk_level,omitempty"`
	Priority    *int                   `json:"priority,omitempty"`
	Enabled     *bool                  `json:"enabled,omitempty"`
	Conditions  *[]types.RuleCondition `json:"conditions,omitempty"`
}

// UpdateRule merges a partial update into one rule of a non-built-in profile.
func (s *Store) UpdateRule(ctx context.Context, profileID, ruleID string, upd RuleUpdate) error {
	s.mu.Lock()
	err := s.updateRuleLocked(ctx, profileID, ruleID, upd)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emitChange("rule_updated", profileID, ruleID)
	return nil
}

func (s *Store) updateRuleLocked(ctx context.Context, profileID, ruleID string, upd RuleUpdate) error {
	p, ok := s.profiles[profileID]
	if !ok {
		return fmt.Errorf("update rule in profile %s: %w", profileID, ErrNotFound)
	}
	if p.IsBuiltIn {
		return fmt.Errorf("update rule in profile %s: %w", profileID, ErrForbidden)
	}

	var rule *types.PermissionRule
	for i := range p.Rules {
		if p.Rules[i].ID == ruleID {
			rule = &p.Rules[i]
			break
		}
	}
	if rule == nil {
		return fmt.Errorf("update rule %s: %w", ruleID, ErrRuleNotFound)
	}

	if upd.Name != nil {
		rule.Name = *upd.Name
	}
	if upd.Description != nil {
		rule.Description = *upd.Description
	}
	if upd.Decision != nil {
		rule.Decision = *upd.Decision
	}
	if upd.RiskLevel != nil {
		rule.RiskLevel = *upd.RiskLevel
	}
	if upd.Priority != nil {
		rule.Priority = *upd.Priority
	}
	if upd.Enabled != nil {
		rule.Enabled = *upd.Enabled
	}
	if upd.Conditions != nil {
		conds := make([]types.RuleCondition, len(*upd.Conditions))
		copy(conds, *upd.Conditions)
		rule.Conditions = conds
	}
	rule.ModifiedAt = s.clock.Now()

	s.touchLocked(p)
	if err := s.persistLocked(ctx); err != nil {
		return fmt.Errorf("persist profiles: %w", err)
	}
	return nil
}

// DeleteRule removes one rule from a non-built-in profile.
func (s *Store) DeleteRule(ctx context.Context, profileID, ruleID string) error {
	s.mu.Lock()
	err := s.deleteRuleLocked(ctx, profileID, ruleID)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emitChange("rule_deleted", profileID, ruleID)
	return nil
}

func (s *Store) deleteRuleLocked(ctx context.Context, profileID, ruleID string) error {
	p, ok := s.profiles[profileID]
	if !ok {
		return fmt.Errorf("delete rule in profile %s: %w", profileID, ErrNotFound)
	}
	if p.IsBuiltIn {
		return fmt.Errorf("delete rule in profile %s: %w", profileID, ErrForbidden)
	}

	idx := -1
	for i := range p.Rules {
		if p.Rules[i].ID == ruleID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("delete rule %s: %w", ruleID, ErrRuleNotFound)
	}
	p.Rules = append(p.Rules[:idx], p.Rules[idx+1:]...)

	s.touchLocked(p)
	if err := s.persistLocked(ctx); err != nil {
		return fmt.Errorf("persist profiles: %w", err)
	}
	return nil
}

func (s *Store) touchLocked(p *types.PermissionProfile) {
	p.ModifiedAt = s.clock.Now()
	p.Version++
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/permgate-org/permgate/pkg/audit"
	"github.com/permgate-org/permgate/pkg/cache"
	"github.com/permgate-org/permgate/pkg/events"
	"github.com/permgate-org/permgate/pkg/metrics"
	"github.com/permgate-org/permgate/pkg/profile"
	"github.com/permgate-org/permgate/pkg/types"
)

// Options is the engine's configuration surface.
type Options struct {
	// Enabled is the master kill-switch; a disabled engine answers Prompt
	// for everything.
	Enabled bool
	// DefaultProfileID is consulted when no profile is active and none was
	// requested explicitly.
	DefaultProfileID string
	AuditEnabled     bool
	CacheEnabled     bool
	// CacheTTL is the default lifetime of a cached decision.
	CacheTTL time.Duration
	// SweepInterval paces the background cache sweep.
	SweepInterval time.Duration
}

// DefaultOptions are the settings used when the host supplies none.
var DefaultOptions = Options{
	Enabled:       true,
	AuditEnabled:  true,
	CacheEnabled:  true,
	CacheTTL:      5 * time.Minute,
	SweepInterval: time.Minute,
}

// Deps are the collaborators the engine is constructed with. Profiles and
// Audit are required; the rest default to working implementations.
type Deps struct {
	Profiles  *profile.Store
	Audit     *audit.Log
	Bus       *events.Bus
	Clock     types.Clock
	FileStat  FileStat
	Workspace Workspace
	Logger    *slog.Logger
}

// Engine is the evaluation façade. Construct one per host and share it;
// there is no ambient global instance.
type Engine struct {
	opts     Options
	profiles *profile.Store
	auditLog *audit.Log
	cache    *cache.DecisionCache
	bus      *events.Bus
	clock    types.Clock
	env      *conditionEnv
	log      *slog.Logger
}

func New(deps Deps, opts Options) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	bus := deps.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultOptions.CacheTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultOptions.SweepInterval
	}

	e := &Engine{
		opts:     opts,
		profiles: deps.Profiles,
		auditLog: deps.Audit,
		bus:      bus,
		clock:    clock,
		log:      logger,
		env: &conditionEnv{
			clock:    clock,
			fs:       deps.FileStat,
			ws:       deps.Workspace,
			activity: deps.Audit,
			log:      logger,
		},
	}
	if opts.CacheEnabled {
		e.cache = cache.New(opts.CacheTTL, clock)
		e.cache.StartSweeper(opts.SweepInterval)
	}
	return e
}

// Close releases background resources. The engine must not be used after.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Stop()
	}
}

// Profiles exposes the profile store for hosts and handlers.
func (e *Engine) Profiles() *profile.Store { return e.profiles }

// Audit exposes the audit log for hosts and handlers.
func (e *Engine) Audit() *audit.Log { return e.auditLog }

// Bus exposes the event bus for subscribing to change/decision/error events.
func (e *Engine) Bus() *events.Bus { return e.bus }

// EvalOptions tune a single evaluation.
type EvalOptions struct {
	// ProfileID evaluates against a specific profile instead of the active one.
	ProfileID string
	// SkipCache bypasses both cache lookup and cache store.
	SkipCache bool
	// SkipAudit suppresses the audit entry for this evaluation.
	SkipAudit bool
}

// Evaluate decides whether the operation described by pctx should be
// auto-approved, auto-denied or escalated to the user. It never fails:
// internal errors degrade to a Prompt decision and surface as error events.
func (e *Engine) Evaluate(ctx context.Context, pctx types.PermissionContext, opts EvalOptions) types.PermissionResult {
	start := e.clock.Now()
	if pctx.Timestamp.IsZero() {
		pctx.Timestamp = start
	}

	if !e.opts.Enabled {
		result := types.PermissionResult{
			Decision:             types.DecisionPrompt,
			Reason:               "permission engine is disabled",
			RiskLevel:            types.RiskMedium,
			RequiresConfirmation: true,
		}
		e.bus.PublishDecision(events.DecisionEvent{Context: pctx, Result: result})
		return result
	}

	useCache := e.cache != nil && !opts.SkipCache
	key := cache.Key(pctx.Operation, pctx.URI, pctx.RequestingTool)
	if useCache {
		if cached, ok := e.cache.Get(key); ok {
			metrics.CacheHits.Inc()
			return cached
		}
		metrics.CacheMisses.Inc()
	}

	result := e.decide(pctx, opts)
	result.EvaluationTime = e.clock.Now().Sub(start)

	if useCache && result.Cacheable {
		e.cache.Set(key, result, result.CacheTimeout)
	}

	if e.opts.AuditEnabled && !opts.SkipAudit {
		e.auditLog.Append(ctx, types.AuditEntry{
			Context:  pctx,
			Result:   result,
			Executed: true,
		})
	}

	metrics.EvaluationsTotal.WithLabelValues(string(result.Decision)).Inc()
	metrics.EvaluationDuration.Observe(result.EvaluationTime.Seconds())
	if result.MatchedRule != nil {
		metrics.RuleMatches.WithLabelValues(result.MatchedRule.ID).Inc()
	}

	e.bus.PublishDecision(events.DecisionEvent{Context: pctx, Result: result})
	return result
}

// decide runs profile resolution and rule matching. Panics are converted
// into a Prompt result so a single bad rule can never take down the caller.
func (e *Engine) decide(pctx types.PermissionContext, opts EvalOptions) (result types.PermissionResult) {
	defer func() {
		if r := recover(); r != nil {
			metrics.EvaluationErrors.Inc()
			msg := fmt.Sprintf("evaluation failed: %v", r)
			e.log.Error("evaluation panic, degrading to prompt", "error", r, "uri", pctx.URI)
			e.bus.PublishError(events.ErrorEvent{Message: msg, Context: pctx})
			result = types.PermissionResult{
				Decision:             types.DecisionPrompt,
				Reason:               msg,
				RiskLevel:            types.RiskMedium,
				RequiresConfirmation: true,
			}
		}
	}()

	prof, err := e.resolveProfile(opts.ProfileID)
	if err != nil {
		return types.PermissionResult{
			Decision:             types.DecisionPrompt,
			Reason:               "no active permission profile found",
			RiskLevel:            types.RiskMedium,
			RequiresConfirmation: true,
		}
	}

	for _, rule := range enabledRulesByPriority(prof.Rules) {
		if !e.env.ruleMatches(rule, pctx) {
			continue
		}
		matched := rule.Clone()
		return types.PermissionResult{
			Decision:             rule.Decision,
			MatchedRule:          &matched,
			Reason:               fmt.Sprintf("Rule '%s' matched", rule.Name),
			RiskLevel:            rule.RiskLevel,
			RequiresConfirmation: rule.Decision == types.DecisionPrompt,
			Cacheable:            rule.Decision != types.DecisionPrompt,
			CacheTimeout:         e.opts.CacheTTL,
		}
	}

	return types.PermissionResult{
		Decision:             prof.DefaultDecision,
		Reason:               fmt.Sprintf("No rule matched; using profile '%s' default decision", prof.Name),
		RiskLevel:            types.RiskMedium,
		RequiresConfirmation: prof.DefaultDecision == types.DecisionPrompt,
		Cacheable:            prof.DefaultDecision != types.DecisionPrompt,
		CacheTimeout:         e.opts.CacheTTL,
	}
}

// resolveProfile walks the precedence chain: explicit id, active profile,
// configured default.
func (e *Engine) resolveProfile(explicitID string) (*types.PermissionProfile, error) {
	if explicitID != "" {
		if prof, err := e.profiles.Get(explicitID); err == nil {
			return prof, nil
		}
	}
	if prof, ok := e.profiles.Active(); ok {
		return prof, nil
	}
	if e.opts.DefaultProfileID != "" {
		if prof, err := e.profiles.Get(e.opts.DefaultProfileID); err == nil {
			return prof, nil
		}
	}
	return nil, errors.New("no profile resolves")
}

// WouldAutoApprove evaluates without auditing and reports whether the
// operation would proceed unattended.
func (e *Engine) WouldAutoApprove(ctx context.Context, pctx types.PermissionContext) bool {
	result := e.Evaluate(ctx, pctx, EvalOptions{SkipAudit: true})
	return result.Decision == types.DecisionAllow
}

// ManuallyApprove records a user's explicit approval, bypassing rule
// matching. With createRule, a priority-50 allow rule scoped to the
// resource's extension (or exact path) is added to the active profile so
// the next identical request is auto-approved. When the active profile is
// built-in, the rule lands in an editable copy that takes its place.
func (e *Engine) ManuallyApprove(ctx context.Context, pctx types.PermissionContext, createRule bool) types.PermissionResult {
	return e.manualDecision(ctx, pctx, types.DecisionAllow, createRule)
}

// ManuallyDeny records a user's explicit denial, bypassing rule matching.
// With createRule, a matching priority-50 deny rule is materialized.
func (e *Engine) ManuallyDeny(ctx context.Context, pctx types.PermissionContext, createRule bool) types.PermissionResult {
	return e.manualDecision(ctx, pctx, types.DecisionDeny, createRule)
}

// manualRulePriority sits below built-in and mined rules so explicit
// policy always outranks remembered one-off answers.
const manualRulePriority = 50

func (e *Engine) manualDecision(ctx context.Context, pctx types.PermissionContext, decision types.Decision, createRule bool) types.PermissionResult {
	if pctx.Timestamp.IsZero() {
		pctx.Timestamp = e.clock.Now()
	}

	risk := types.RiskLow
	reason := "Manually approved by user"
	executed := true
	if decision == types.DecisionDeny {
		risk = types.RiskMedium
		reason = "Manually denied by user"
		executed = false
	}
	result := types.PermissionResult{
		Decision:     decision,
		Reason:       reason,
		RiskLevel:    risk,
		Cacheable:    true,
		CacheTimeout: e.opts.CacheTTL,
	}

	if e.opts.AuditEnabled {
		e.auditLog.Append(ctx, types.AuditEntry{
			Context:  pctx,
			Result:   result,
			Executed: executed,
			Notes:    "manual decision",
		})
	}

	if createRule {
		if err := e.materializeRule(ctx, pctx, decision); err != nil {
			e.log.Warn("could not materialize rule from manual decision", "error", err)
		}
	}

	e.bus.PublishDecision(events.DecisionEvent{Context: pctx, Result: result})
	return result
}

func (e *Engine) materializeRule(ctx context.Context, pctx types.PermissionContext, decision types.Decision) error {
	targetID, err := e.writableActiveProfile(ctx)
	if err != nil {
		return err
	}

	var cond types.RuleCondition
	var subject string
	if ext := types.FileExtension(pctx.URI); ext != "" {
		cond = types.RuleCondition{
			Type:     types.CondFileExtension,
			Operator: types.OperatorEquals,
			Value:    ext,
		}
		subject = "." + ext + " files"
	} else {
		cond = types.RuleCondition{
			Type:     types.CondFilePath,
			Operator: types.OperatorEquals,
			Value:    pctx.URI,
		}
		subject = pctx.URI
	}

	risk := types.RiskLow
	if decision == types.DecisionDeny {
		risk = types.RiskMedium
	}
	rule := types.PermissionRule{
		Name:        fmt.Sprintf("User %s %s for %s", pastTense(decision), pctx.Operation, subject),
		Description: "Created from a manual decision",
		Operation:   pctx.Operation,
		Scope:       types.ScopeFile,
		Decision:    decision,
		RiskLevel:   risk,
		Conditions:  []types.RuleCondition{cond},
		Priority:    manualRulePriority,
		Enabled:     true,
	}

	_, err = e.profiles.AddRule(ctx, targetID, rule)
	return err
}

// writableActiveProfile returns the id of a profile that can hold
// materialized rules. Built-in profiles are immutable, so when one is
// active an editable copy of it is created (or reused) and activated; the
// copy carries the built-in's rules and default decision, so evaluation
// behaviour is unchanged apart from the new rule.
func (e *Engine) writableActiveProfile(ctx context.Context) (string, error) {
	active, ok := e.profiles.Active()
	if !ok {
		return "", errors.New("no active profile to attach rule to")
	}
	if !active.IsBuiltIn {
		return active.ID, nil
	}

	derivedName := active.Name + " (customized)"
	for _, p := range e.profiles.List() {
		if !p.IsBuiltIn && p.Name == derivedName {
			if err := e.profiles.SetActive(ctx, p.ID); err != nil {
				return "", err
			}
			return p.ID, nil
		}
	}

	id, err := e.profiles.Create(ctx, types.PermissionProfile{
		Name:            derivedName,
		Description:     fmt.Sprintf("Editable copy of the built-in %s profile holding manual decisions", active.Name),
		DefaultDecision: active.DefaultDecision,
		SecurityLevel:   types.LevelCustom,
		Rules:           active.Rules,
	})
	if err != nil {
		return "", fmt.Errorf("derive editable profile: %w", err)
	}
	if err := e.profiles.SetActive(ctx, id); err != nil {
		return "", err
	}
	e.log.Info("derived editable profile from built-in", "from", active.ID, "to", id)
	return id, nil
}

func pastTense(d types.Decision) string {
	if d == types.DecisionDeny {
		return "denied"
	}
	return "approved"
}

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/permgate-org/permgate/pkg/store"
	"github.com/permgate-org/permgate/pkg/types"
)

// storageKey is the KV document this log owns.
const storageKey = "audit"

// csvHeader is the fixed export header. Reasons have commas replaced with
// semicolons so the column count never breaks.
const csvHeader = "Timestamp,Operation,URI,Decision,Reason,Executed,Tool,Risk Level"

// Log is an append-only, capacity-bounded record of permission decisions.
// When the cap is exceeded the oldest entries are dropped first.
type Log struct {
	mu      sync.RWMutex
	entries []types.AuditEntry
	max     int

	kv    store.KV
	clock types.Clock
	log   *slog.Logger
}

func NewLog(maxEntries int, kv store.KV, clock types.Clock, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.SystemClock{}
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Log{
		max:   maxEntries,
		kv:    kv,
		clock: clock,
		log:   logger,
	}
}

// Load hydrates the log from the KV collaborator, re-applying the cap in
// case it shrank since the entries were written.
func (l *Log) Load(ctx context.Context) error {
	data, err := l.kv.Get(ctx, storageKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load audit log: %w", err)
	}

	var entries []types.AuditEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse audit log: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = entries
	l.capLocked()
	return nil
}

// Append records one entry, assigning an id when missing, and persists the
// capped tail. Persistence failure is logged but does not fail the append:
// losing history must never block a decision.
func (l *Log) Append(ctx context.Context, e types.AuditEntry) {
	if e.ID == "" {
		e.ID = types.GenerateAuditID()
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.capLocked()
	l.mu.Unlock()

	if err := l.persist(ctx); err != nil {
		l.log.Warn("audit persist failed", "error", err)
	}
}

func (l *Log) capLocked() {
	if over := len(l.entries) - l.max; over > 0 {
		l.entries = append([]types.AuditEntry(nil), l.entries[over:]...)
	}
}

func (l *Log) persist(ctx context.Context) error {
	l.mu.RLock()
	data, err := json.Marshal(l.entries)
	l.mu.RUnlock()
	if err != nil {
		return err
	}
	return l.kv.Set(ctx, storageKey, data)
}

// Len returns the current number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns entries matching every filter key/value, newest first,
// truncated to limit (limit <= 0 means no truncation). Recognized filter
// keys: operation, decision, uri, tool, user_id, session_id, risk_level,
// executed.
func (l *Log) Entries(limit int, filter map[string]string) []types.AuditEntry {
	l.mu.RLock()
	out := make([]types.AuditEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if matchesFilter(e, filter) {
			out = append(out, e)
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Context.Timestamp.After(out[j].Context.Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func matchesFilter(e types.AuditEntry, filter map[string]string) bool {
	for key, want := range filter {
		var got string
		switch key {
		case "operation":
			got = string(e.Context.Operation)
		case "decision":
			got = string(e.Result.Decision)
		case "uri":
			got = e.Context.URI
		case "tool":
			got = e.Context.RequestingTool
		case "user_id":
			got = e.Context.UserID
		case "session_id":
			got = e.SessionID
		case "risk_level":
			got = string(e.Result.RiskLevel)
		case "executed":
			got = strconv.FormatBool(e.Executed)
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

// Clear removes all entries, or only those older than the cutoff.
func (l *Log) Clear(ctx context.Context, olderThan *time.Time) {
	l.mu.Lock()
	if olderThan == nil {
		l.entries = nil
	} else {
		kept := l.entries[:0]
		for _, e := range l.entries {
			if !e.Context.Timestamp.Before(*olderThan) {
				kept = append(kept, e)
			}
		}
		l.entries = kept
	}
	l.mu.Unlock()

	if err := l.persist(ctx); err != nil {
		l.log.Warn("audit persist failed", "error", err)
	}
}

// ExportJSON serializes every entry as a JSON array.
func (l *Log) ExportJSON() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.MarshalIndent(l.entries, "", "  ")
}

// ExportCSV renders every entry as CSV with a fixed header.
func (l *Log) ExportCSV() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteByte('\n')
	for _, e := range l.entries {
		reason := strings.ReplaceAll(e.Result.Reason, ",", ";")
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%t,%s,%s\n",
			e.Context.Timestamp.Format(time.RFC3339),
			e.Context.Operation,
			e.Context.URI,
			e.Result.Decision,
			reason,
			e.Executed,
			e.Context.RequestingTool,
			e.Result.RiskLevel,
		)
	}
	return b.String()
}

// HasRecentActivity reports whether any entry for the same resource and
// operation exists at or after the cutoff. Backs the recent-activity
// condition evaluator.
func (l *Log) HasRecentActivity(uri string, op types.Operation, since time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.Context.URI == uri && e.Context.Operation == op && !e.Context.Timestamp.Before(since) {
			return true
		}
	}
	return false
}

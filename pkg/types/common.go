package types

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID Generation Helpers

func GenerateID(prefix string) string {
	return prefix + "_" + ulid.Make().String()
}

func GenerateProfileID() string  { return GenerateID("prf") }
func GenerateRuleID() string     { return GenerateID("rul") }
func GenerateAuditID() string    { return GenerateID("aud") }
func GenerateDecisionID() string { return GenerateID("dec") }

// FileExtension derives the lowercase extension of the last path segment,
// without the dot. Paths with no dot yield "".
func FileExtension(uri string) string {
	segment := uri
	if i := strings.LastIndexAny(uri, "/\\"); i >= 0 {
		segment = uri[i+1:]
	}
	dot := strings.LastIndex(segment, ".")
	if dot < 0 || dot == len(segment)-1 {
		return ""
	}
	return strings.ToLower(segment[dot+1:])
}

// Clock abstracts wall-clock access so tests can freeze time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

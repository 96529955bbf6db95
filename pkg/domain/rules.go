package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule checks one referential invariant of a Snapshot.
type Rule interface {
	Name() string
	Evaluate(s *Snapshot) Result
}

// Violation reports a reference that could not be resolved.
type Violation struct {
	Rule     string
	Entity   EntityType
	EntityID string
	Message  string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s %s: %s", v.Rule, v.Entity, v.EntityID, v.Message)
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// OK reports whether no rule was violated.
func (r Result) OK() bool { return len(r.Violations) == 0 }

// ValidationError is returned when a snapshot breaks referential integrity.
// It lists every violation found, not only the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	n := len(e.Violations)
	if n == 0 {
		return "snapshot rejected"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "snapshot rejected: %d violation(s)", n)
	for i, v := range e.Violations {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", n-i)
			break
		}
		b.WriteString("; ")
		b.WriteString(v.String())
	}
	return b.String()
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine with the supplied rules.
func NewRulesEngine(rules ...Rule) *RulesEngine {
	return &RulesEngine{rules: rules}
}

// DefaultRulesEngine returns an engine enforcing every snapshot reference.
func DefaultRulesEngine() *RulesEngine {
	return NewRulesEngine(
		AllianceReferenceRule(),
		OwnerReferenceRule(),
		IslandReferenceRule(),
		OffsetReferenceRule(),
	)
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(s *Snapshot) Result {
	var combined Result
	for _, rule := range e.rules {
		combined.Merge(rule.Evaluate(s))
	}
	return combined
}

// Validate promotes s to a ValidSnapshot when every rule passes.
func (e *RulesEngine) Validate(s *Snapshot) (ValidSnapshot, error) {
	if s == nil {
		return ValidSnapshot{}, &ValidationError{Violations: []Violation{{
			Rule: "snapshot_present", Message: "snapshot is nil",
		}}}
	}
	if res := e.Evaluate(s); !res.OK() {
		return ValidSnapshot{}, &ValidationError{Violations: res.Violations}
	}
	return ValidSnapshot{snap: s}, nil
}

var defaultEngine = DefaultRulesEngine()

// Validate checks every cross-table reference in s. It is the only way to
// obtain a ValidSnapshot.
func Validate(s *Snapshot) (ValidSnapshot, error) {
	return defaultEngine.Validate(s)
}

// ValidSnapshot is a Snapshot proven to be referentially complete: every
// player alliance, town owner, town island and town slot resolves.
type ValidSnapshot struct {
	snap *Snapshot
}

// Snapshot returns the underlying capture.
func (v ValidSnapshot) Snapshot() *Snapshot { return v.snap }

// IsZero reports whether v was not produced by Validate.
func (v ValidSnapshot) IsZero() bool { return v.snap == nil }

// CapturedAt returns the capture timestamp.
func (v ValidSnapshot) CapturedAt() time.Time { return v.snap.CapturedAt() }

type ruleFunc struct {
	name string
	fn   func(*Snapshot) []Violation
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Evaluate(s *Snapshot) Result {
	vs := r.fn(s)
	for i := range vs {
		vs[i].Rule = r.name
	}
	return Result{Violations: vs}
}

func idString(id uint32) string { return strconv.FormatUint(uint64(id), 10) }

// AllianceReferenceRule requires every affiliated player to reference a known
// alliance.
func AllianceReferenceRule() Rule {
	return ruleFunc{name: "player_alliance_exists", fn: func(s *Snapshot) []Violation {
		var out []Violation
		for _, p := range s.Players() {
			if !p.HasAlliance() {
				continue
			}
			if _, ok := s.Alliance(p.AllianceID); !ok {
				out = append(out, Violation{
					Entity:   EntityPlayer,
					EntityID: idString(p.ID),
					Message:  fmt.Sprintf("unknown alliance %d", p.AllianceID),
				})
			}
		}
		return out
	}}
}

// OwnerReferenceRule requires every owned town to reference a known player.
func OwnerReferenceRule() Rule {
	return ruleFunc{name: "town_owner_exists", fn: func(s *Snapshot) []Violation {
		var out []Violation
		for _, t := range s.Towns() {
			if t.IsGhost() {
				continue
			}
			if _, ok := s.Player(t.OwnerID); !ok {
				out = append(out, Violation{
					Entity:   EntityTown,
					EntityID: idString(t.ID),
					Message:  fmt.Sprintf("unknown owner %d", t.OwnerID),
				})
			}
		}
		return out
	}}
}

// IslandReferenceRule requires every town to sit on a known island.
func IslandReferenceRule() Rule {
	return ruleFunc{name: "town_island_exists", fn: func(s *Snapshot) []Violation {
		var out []Violation
		for _, t := range s.Towns() {
			if _, ok := s.Island(t.Island); !ok {
				out = append(out, Violation{
					Entity:   EntityTown,
					EntityID: idString(t.ID),
					Message:  fmt.Sprintf("unknown island %s", t.Island),
				})
			}
		}
		return out
	}}
}

// OffsetReferenceRule requires every town slot to have a known offset.
func OffsetReferenceRule() Rule {
	return ruleFunc{name: "town_slot_offset_exists", fn: func(s *Snapshot) []Violation {
		var out []Violation
		for _, t := range s.Towns() {
			if _, ok := s.Offset(t.Slot); !ok {
				out = append(out, Violation{
					Entity:   EntityTown,
					EntityID: idString(t.ID),
					Message:  fmt.Sprintf("unknown offset for slot %d", t.Slot),
				})
			}
		}
		return out
	}}
}

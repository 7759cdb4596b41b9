// README: Status transition table: which status may move where, by whom, and with what requirements.
package order

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

type ConditionTag string

const (
	ConditionPaymentCaptured ConditionTag = "payment_captured"
	ConditionKitchenAccepted ConditionTag = "kitchen_accepted"
)

// AutoAdvance describes a transition that may fire on its own once the preconditions hold.
// The table only carries it; nothing in the table schedules it.
type AutoAdvance struct {
	AfterMinutes  int            `yaml:"after_minutes" json:"afterMinutes"`
	Preconditions []ConditionTag `yaml:"preconditions" json:"preconditions"`
}

type Rule struct {
	From                  Status       `yaml:"from" json:"from"`
	To                    Status       `yaml:"to" json:"to"`
	AllowedRoles          []Role       `yaml:"roles" json:"allowedRoles"`
	RequiresEstimatedTime bool         `yaml:"requires_estimated_time" json:"requiresEstimatedTime"`
	AutoAdvance           *AutoAdvance `yaml:"auto_advance,omitempty" json:"autoAdvance,omitempty"`
}

func (r Rule) Permits(role Role) bool {
	return slices.Contains(r.AllowedRoles, role)
}

var ErrDuplicateRule = errors.New("duplicate transition rule")

// DefaultRules is the restaurant rule set.
var DefaultRules = []Rule{
	{From: StatusPending, To: StatusConfirmed, AllowedRoles: []Role{RoleAdmin, RoleStaff}, RequiresEstimatedTime: true},
	{From: StatusPending, To: StatusCancelled, AllowedRoles: []Role{RoleAdmin, RoleStaff}},
	{
		From:         StatusConfirmed,
		To:           StatusPreparing,
		AllowedRoles: []Role{RoleAdmin, RoleStaff, RoleKitchen},
		AutoAdvance:  &AutoAdvance{AfterMinutes: 5, Preconditions: []ConditionTag{ConditionPaymentCaptured}},
	},
	{From: StatusConfirmed, To: StatusCancelled, AllowedRoles: []Role{RoleAdmin, RoleStaff}},
	{From: StatusPreparing, To: StatusReady, AllowedRoles: []Role{RoleAdmin, RoleStaff, RoleKitchen}},
	{From: StatusReady, To: StatusOutForDelivery, AllowedRoles: []Role{RoleAdmin, RoleStaff, RoleDriver}, RequiresEstimatedTime: true},
	// pickup handoff
	{From: StatusReady, To: StatusDelivered, AllowedRoles: []Role{RoleAdmin, RoleStaff}},
	{From: StatusOutForDelivery, To: StatusDelivered, AllowedRoles: []Role{RoleAdmin, RoleStaff, RoleDriver}},
}

type transitionKey struct {
	from, to Status
}

// Table is an immutable index over a rule set.
type Table struct {
	rules []Rule
	byKey map[transitionKey]Rule
}

// NewTable validates rules and indexes them by (from, to).
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{
		rules: make([]Rule, 0, len(rules)),
		byKey: make(map[transitionKey]Rule, len(rules)),
	}
	for _, r := range rules {
		if !r.From.Valid() || !r.To.Valid() {
			return nil, fmt.Errorf("rule %s -> %s: unknown status", r.From, r.To)
		}
		if r.From.Terminal() {
			return nil, fmt.Errorf("rule %s -> %s: %s is terminal", r.From, r.To, r.From)
		}
		if r.From == r.To {
			return nil, fmt.Errorf("rule %s -> %s: self transition", r.From, r.To)
		}
		if len(r.AllowedRoles) == 0 {
			return nil, fmt.Errorf("rule %s -> %s: no allowed roles", r.From, r.To)
		}
		k := transitionKey{r.From, r.To}
		if _, ok := t.byKey[k]; ok {
			return nil, fmt.Errorf("rule %s -> %s: %w", r.From, r.To, ErrDuplicateRule)
		}
		r.AllowedRoles = slices.Clone(r.AllowedRoles)
		t.byKey[k] = r
		t.rules = append(t.rules, r)
	}
	return t, nil
}

// MustTable is NewTable for rule sets known to be valid at compile time.
func MustTable(rules []Rule) *Table {
	t, err := NewTable(rules)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultTable returns a table over DefaultRules.
func DefaultTable() *Table {
	return MustTable(DefaultRules)
}

type tableFile struct {
	Transitions []Rule `yaml:"transitions"`
}

// LoadTable reads a YAML rule file of the form
//
//	transitions:
//	  - from: pending
//	    to: confirmed
//	    roles: [admin, staff]
//	    requires_estimated_time: true
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transitions file: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse transitions file: %w", err)
	}
	if len(f.Transitions) == 0 {
		return nil, fmt.Errorf("transitions file %s defines no rules", path)
	}
	return NewTable(f.Transitions)
}

func (t *Table) RuleFor(from, to Status) (Rule, bool) {
	r, ok := t.byKey[transitionKey{from, to}]
	return r, ok
}

func (t *Table) IsAllowed(from, to Status, role Role) bool {
	r, ok := t.RuleFor(from, to)
	return ok && r.Permits(role)
}

// NextAllowed lists the statuses role may move an order in from to, in forward order.
// Terminal statuses yield an empty, non-nil slice.
func (t *Table) NextAllowed(from Status, role Role) []Status {
	out := []Status{}
	for _, r := range t.rules {
		if r.From == from && r.Permits(role) {
			out = append(out, r.To)
		}
	}
	slices.SortFunc(out, func(a, b Status) int { return a.Rank() - b.Rank() })
	return out
}

// Rules returns a copy of the rule set in declaration order.
func (t *Table) Rules() []Rule {
	out := slices.Clone(t.rules)
	for i := range out {
		out[i].AllowedRoles = slices.Clone(out[i].AllowedRoles)
	}
	return out
}

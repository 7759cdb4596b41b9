// README: Transition table tests (default rules, rule file loading, validation).
package order

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowed(t *testing.T) {
	table := DefaultTable()
	cases := []struct {
		from, to Status
		role     Role
		want     bool
	}{
		// forward path with the roles that own each step
		{StatusPending, StatusConfirmed, RoleAdmin, true},
		{StatusPending, StatusConfirmed, RoleStaff, true},
		{StatusConfirmed, StatusPreparing, RoleKitchen, true},
		{StatusPreparing, StatusReady, RoleKitchen, true},
		{StatusReady, StatusOutForDelivery, RoleDriver, true},
		{StatusOutForDelivery, StatusDelivered, RoleDriver, true},
		{StatusReady, StatusDelivered, RoleStaff, true},
		// cancels
		{StatusPending, StatusCancelled, RoleAdmin, true},
		{StatusConfirmed, StatusCancelled, RoleStaff, true},
		{StatusPreparing, StatusCancelled, RoleAdmin, false},
		// wrong role
		{StatusPending, StatusConfirmed, RoleKitchen, false},
		{StatusPreparing, StatusReady, RoleDriver, false},
		{StatusReady, StatusDelivered, RoleDriver, false},
		{StatusPending, StatusConfirmed, RoleCustomer, false},
		// skipping states
		{StatusPending, StatusPreparing, RoleAdmin, false},
		{StatusConfirmed, StatusDelivered, RoleAdmin, false},
		// self loops
		{StatusPending, StatusPending, RoleAdmin, false},
		{StatusPreparing, StatusPreparing, RoleKitchen, false},
		// terminal states have no outgoing transitions
		{StatusDelivered, StatusPending, RoleAdmin, false},
		{StatusCancelled, StatusPending, RoleAdmin, false},
		// unknown target
		{StatusPending, Status("lost"), RoleAdmin, false},
	}
	for _, tc := range cases {
		got := table.IsAllowed(tc.from, tc.to, tc.role)
		if got != tc.want {
			t.Errorf("IsAllowed(%s, %s, %s) = %v, want %v", tc.from, tc.to, tc.role, got, tc.want)
		}
	}
}

func TestNoSelfTransitionsForAnyRole(t *testing.T) {
	table := DefaultTable()
	roles := []Role{RoleAdmin, RoleStaff, RoleKitchen, RoleDriver, RoleSystem, RoleCustomer}
	for _, st := range AllStatuses {
		for _, role := range roles {
			assert.False(t, table.IsAllowed(st, st, role), "%s -> %s as %s", st, st, role)
		}
	}
}

func TestTerminalStatusesHaveNoNextAllowed(t *testing.T) {
	table := DefaultTable()
	for _, st := range []Status{StatusDelivered, StatusCancelled} {
		for _, role := range []Role{RoleAdmin, RoleStaff, RoleDriver} {
			next := table.NextAllowed(st, role)
			require.NotNil(t, next)
			assert.Empty(t, next)
		}
	}
}

func TestNextAllowedOrdering(t *testing.T) {
	table := DefaultTable()
	assert.Equal(t, []Status{StatusConfirmed, StatusCancelled}, table.NextAllowed(StatusPending, RoleAdmin))
	assert.Equal(t, []Status{StatusOutForDelivery, StatusDelivered}, table.NextAllowed(StatusReady, RoleStaff))
	assert.Equal(t, []Status{StatusOutForDelivery}, table.NextAllowed(StatusReady, RoleDriver))
	assert.Equal(t, []Status{StatusPreparing}, table.NextAllowed(StatusConfirmed, RoleKitchen))
	assert.Empty(t, table.NextAllowed(StatusPending, RoleCustomer))
}

func TestNextAllowedAgreesWithIsAllowed(t *testing.T) {
	table := DefaultTable()
	roles := []Role{RoleAdmin, RoleStaff, RoleKitchen, RoleDriver, RoleCustomer}
	for _, from := range AllStatuses {
		for _, role := range roles {
			next := table.NextAllowed(from, role)
			for _, to := range AllStatuses {
				assert.Equal(t, table.IsAllowed(from, to, role), contains(next, to), "%s -> %s as %s", from, to, role)
			}
		}
	}
}

func TestDefaultRulesRequireEstimatedTime(t *testing.T) {
	table := DefaultTable()
	r, ok := table.RuleFor(StatusPending, StatusConfirmed)
	require.True(t, ok)
	assert.True(t, r.RequiresEstimatedTime)

	r, ok = table.RuleFor(StatusReady, StatusOutForDelivery)
	require.True(t, ok)
	assert.True(t, r.RequiresEstimatedTime)

	r, ok = table.RuleFor(StatusPreparing, StatusReady)
	require.True(t, ok)
	assert.False(t, r.RequiresEstimatedTime)

	r, ok = table.RuleFor(StatusConfirmed, StatusPreparing)
	require.True(t, ok)
	require.NotNil(t, r.AutoAdvance)
	assert.Equal(t, 5, r.AutoAdvance.AfterMinutes)
	assert.Equal(t, []ConditionTag{ConditionPaymentCaptured}, r.AutoAdvance.Preconditions)
}

func TestNewTableRejectsInvalidRules(t *testing.T) {
	cases := []struct {
		name  string
		rules []Rule
	}{
		{"duplicate", []Rule{
			{From: StatusPending, To: StatusConfirmed, AllowedRoles: []Role{RoleAdmin}},
			{From: StatusPending, To: StatusConfirmed, AllowedRoles: []Role{RoleKitchen}},
		}},
		{"self", []Rule{{From: StatusReady, To: StatusReady, AllowedRoles: []Role{RoleAdmin}}}},
		{"terminal", []Rule{{From: StatusDelivered, To: StatusPending, AllowedRoles: []Role{RoleAdmin}}}},
		{"unknown", []Rule{{From: StatusPending, To: Status("lost"), AllowedRoles: []Role{RoleAdmin}}}},
		{"no roles", []Rule{{From: StatusPending, To: StatusConfirmed}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTable(tc.rules)
			assert.Error(t, err)
		})
	}

	_, err := NewTable([]Rule{
		{From: StatusPending, To: StatusConfirmed, AllowedRoles: []Role{RoleAdmin}},
		{From: StatusPending, To: StatusConfirmed, AllowedRoles: []Role{RoleStaff}},
	})
	assert.True(t, errors.Is(err, ErrDuplicateRule))
}

func TestTableCopiesRoleSets(t *testing.T) {
	roles := []Role{RoleAdmin}
	table := MustTable([]Rule{{From: StatusPending, To: StatusConfirmed, AllowedRoles: roles}})
	roles[0] = RoleCustomer
	assert.True(t, table.IsAllowed(StatusPending, StatusConfirmed, RoleAdmin))
	assert.False(t, table.IsAllowed(StatusPending, StatusConfirmed, RoleCustomer))
}

func TestRulesReturnsIndependentRoleSets(t *testing.T) {
	table := DefaultTable()
	rules := table.Rules()
	require.NotEmpty(t, rules)
	for i := range rules {
		for j := range rules[i].AllowedRoles {
			rules[i].AllowedRoles[j] = RoleCustomer
		}
	}
	assert.True(t, table.IsAllowed(StatusPending, StatusConfirmed, RoleAdmin))
	assert.False(t, table.IsAllowed(StatusPending, StatusConfirmed, RoleCustomer))
	rule, ok := table.RuleFor(StatusPending, StatusConfirmed)
	require.True(t, ok)
	assert.Contains(t, rule.AllowedRoles, RoleStaff)
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transitions.yaml")
	content := `transitions:
  - from: pending
    to: confirmed
    roles: [admin]
    requires_estimated_time: true
  - from: confirmed
    to: preparing
    roles: [kitchen]
    auto_advance:
      after_minutes: 10
      preconditions: [kitchen_accepted]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Len(t, table.Rules(), 2)
	assert.True(t, table.IsAllowed(StatusPending, StatusConfirmed, RoleAdmin))
	assert.False(t, table.IsAllowed(StatusPending, StatusConfirmed, RoleStaff))

	r, ok := table.RuleFor(StatusConfirmed, StatusPreparing)
	require.True(t, ok)
	require.NotNil(t, r.AutoAdvance)
	assert.Equal(t, 10, r.AutoAdvance.AfterMinutes)
	assert.Equal(t, []ConditionTag{ConditionKitchenAccepted}, r.AutoAdvance.Preconditions)
}

func TestLoadTableRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transitions.yaml")
	content := `transitions:
  - {from: pending, to: confirmed, roles: [admin]}
  - {from: pending, to: confirmed, roles: [staff]}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadTable(path)
	assert.ErrorIs(t, err, ErrDuplicateRule)
}

func TestLoadTableEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transitions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transitions: []\n"), 0o600))
	_, err := LoadTable(path)
	assert.Error(t, err)

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func contains(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

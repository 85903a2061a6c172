package domain

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Permission is a capability tag checked by route guards.
type Permission string

const (
	PermViewDashboard   Permission = "view_dashboard"
	PermViewAssets      Permission = "view_assets"
	PermCreateAssets    Permission = "create_assets"
	PermUpdateAssets    Permission = "update_assets"
	PermDeleteAssets    Permission = "delete_assets"
	PermViewPM          Permission = "view_pm"
	PermCreatePM        Permission = "create_pm"
	PermUpdatePM        Permission = "update_pm"
	PermDeletePM        Permission = "delete_pm"
	PermViewBreakdowns  Permission = "view_breakdowns"
	PermCreateBreakdown Permission = "create_breakdown"
	PermUpdateBreakdown Permission = "update_breakdown"
	PermViewSpares      Permission = "view_spares"
	PermCreateSpares    Permission = "create_spares"
	PermUpdateSpares    Permission = "update_spares"
	PermIssueSpares     Permission = "issue_spares"
	PermViewUtilities   Permission = "view_utilities"
	PermCreateUtilities Permission = "create_utilities"
	PermViewKPI         Permission = "view_kpi"
	PermViewAnalytics   Permission = "view_analytics"
	PermManageUsers     Permission = "manage_users"
	PermManageRoles     Permission = "manage_roles"
)

//go:embed permissions.yaml
var permissionsYAML []byte

// PermissionTable maps each role to a fixed permission set.
type PermissionTable struct {
	byRole map[Role]map[Permission]struct{}
}

// ParsePermissionTable decodes a role → permissions YAML document.
// Every role must be present and every permission must be known.
func ParsePermissionTable(data []byte) (*PermissionTable, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode permission table: %w", err)
	}

	known := make(map[Permission]struct{}, len(allPermissions))
	for _, p := range allPermissions {
		known[p] = struct{}{}
	}

	t := &PermissionTable{byRole: make(map[Role]map[Permission]struct{}, len(raw))}
	for roleName, perms := range raw {
		role, err := ParseRole(roleName)
		if err != nil {
			return nil, fmt.Errorf("permission table: %w", err)
		}
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			perm := Permission(p)
			if _, ok := known[perm]; !ok {
				return nil, fmt.Errorf("permission table: role %s: unknown permission %q", role, p)
			}
			set[perm] = struct{}{}
		}
		t.byRole[role] = set
	}
	for _, role := range Roles() {
		if _, ok := t.byRole[role]; !ok {
			return nil, fmt.Errorf("permission table: role %s missing", role)
		}
	}
	return t, nil
}

var (
	defaultTableOnce sync.Once
	defaultTable     *PermissionTable
)

// DefaultPermissions returns the embedded table. It panics if the embedded
// file is invalid, which the package tests rule out.
func DefaultPermissions() *PermissionTable {
	defaultTableOnce.Do(func() {
		t, err := ParsePermissionTable(permissionsYAML)
		if err != nil {
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}

// Has reports whether role holds perm. Unknown roles hold nothing.
func (t *PermissionTable) Has(role Role, perm Permission) bool {
	_, ok := t.byRole[role][perm]
	return ok
}

// Permissions returns role's permissions sorted by name.
func (t *PermissionTable) Permissions(role Role) []Permission {
	set := t.byRole[role]
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var allPermissions = []Permission{
	PermViewDashboard, PermViewAssets, PermCreateAssets, PermUpdateAssets, PermDeleteAssets,
	PermViewPM, PermCreatePM, PermUpdatePM, PermDeletePM,
	PermViewBreakdowns, PermCreateBreakdown, PermUpdateBreakdown,
	PermViewSpares, PermCreateSpares, PermUpdateSpares, PermIssueSpares,
	PermViewUtilities, PermCreateUtilities,
	PermViewKPI, PermViewAnalytics, PermManageUsers, PermManageRoles,
}

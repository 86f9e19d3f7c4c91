package rbac

import (
	"encoding/json"
	"sort"
)

// Accessible lists the resources a role set reaches. When All is set the
// caller is a superadmin and the ID lists are empty.
type Accessible struct {
	All          bool
	ReviewGroups []string
	Namespaces   []string
	Projects     []string
	Teams        []string
}

// MarshalJSON renders every list as "all" for a superadmin
func (a Accessible) MarshalJSON() ([]byte, error) {
	if a.All {
		return json.Marshal(map[string]string{
			"reviewGroups": "all",
			"namespaces":   "all",
			"projects":     "all",
			"teams":        "all",
		})
	}
	return json.Marshal(map[string][]string{
		"reviewGroups": nonNil(a.ReviewGroups),
		"namespaces":   nonNil(a.Namespaces),
		"projects":     nonNil(a.Projects),
		"teams":        nonNil(a.Teams),
	})
}

// AccessibleResources returns what roles can reach. Namespaces are the union
// of team and translation namespaces. Projects are not derivable from roles
// and stay empty. Returns nil for a nil role set.
func AccessibleResources(roles *RoleSet) *Accessible {
	if roles == nil {
		return nil
	}
	if roles.IsSuperadmin() {
		return &Accessible{All: true}
	}

	out := &Accessible{
		ReviewGroups: make([]string, 0, len(roles.ReviewGroups)),
		Projects:     []string{},
		Teams:        make([]string, 0, len(roles.Teams)),
	}
	for _, rg := range roles.ReviewGroups {
		out.ReviewGroups = append(out.ReviewGroups, rg.ReviewGroupID)
	}

	namespaces := make(map[string]struct{})
	for _, t := range roles.Teams {
		out.Teams = append(out.Teams, t.TeamID)
		for _, ns := range t.Namespaces {
			namespaces[ns] = struct{}{}
		}
	}
	for _, tr := range roles.Translations {
		for _, ns := range tr.Namespaces {
			namespaces[ns] = struct{}{}
		}
	}

	out.Namespaces = make([]string, 0, len(namespaces))
	for ns := range namespaces {
		out.Namespaces = append(out.Namespaces, ns)
	}
	sort.Strings(out.Namespaces)
	return out
}

// CanReachNamespace reports whether the namespace is in the accessible set
func (a *Accessible) CanReachNamespace(namespaceID string) bool {
	if a == nil {
		return false
	}
	return a.All || containsString(a.Namespaces, namespaceID)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Matrix maps every resource type to the actions roles may perform on it
// when no attributes are given
type Matrix map[ResourceType]map[Action]bool

// PermissionMatrix evaluates every (resource type, action) pair without
// attributes. Attribute-scoped grants do not show up here.
func PermissionMatrix(roles *RoleSet) Matrix {
	m := make(Matrix, len(actionSets))
	for _, rt := range ResourceTypes() {
		row := make(map[Action]bool)
		for _, a := range rt.Actions() {
			row[a] = Evaluate(roles, Request{resource: rt, action: a})
		}
		m[rt] = row
	}
	return m
}

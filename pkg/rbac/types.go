package rbac

// SystemRole is a role that applies across every resource
type SystemRole string

// SystemRoleSuperadmin bypasses every rule
const SystemRoleSuperadmin SystemRole = "superadmin"

// ReviewGroupRoleName is the role held inside a review group. Only admin exists.
type ReviewGroupRoleName string

const RoleReviewGroupAdmin ReviewGroupRoleName = "admin"

// TeamRoleName is the role a team confers on all of its namespaces
type TeamRoleName string

const (
	TeamRoleEditor TeamRoleName = "editor"
	TeamRoleAuthor TeamRoleName = "author"
)

// rank orders team roles so the strongest can be picked when several teams
// cover the same namespace
func (r TeamRoleName) rank() int {
	switch r {
	case TeamRoleEditor:
		return 2
	case TeamRoleAuthor:
		return 1
	default:
		return 0
	}
}

// ReviewGroupRole grants a role in one review group
type ReviewGroupRole struct {
	ReviewGroupID string              `json:"reviewGroupId"`
	Role          ReviewGroupRoleName `json:"role"`
}

// TeamRole grants a role across the namespaces a team works on
type TeamRole struct {
	TeamID      string       `json:"teamId"`
	Role        TeamRoleName `json:"role"`
	ReviewGroup string       `json:"reviewGroup"`
	Namespaces  []string     `json:"namespaces"`
}

// Covers reports whether the team works on namespaceID
func (t TeamRole) Covers(namespaceID string) bool {
	return containsString(t.Namespaces, namespaceID)
}

// TranslationAssignment lets a translator work on one language in a set of
// namespaces
type TranslationAssignment struct {
	Language   string   `json:"language"`
	Namespaces []string `json:"namespaces"`
}

// Covers reports whether the assignment includes namespaceID
func (a TranslationAssignment) Covers(namespaceID string) bool {
	return containsString(a.Namespaces, namespaceID)
}

// RoleSet is everything about a principal that authorization looks at.
// The three collections are never nil once Normalize has run.
type RoleSet struct {
	UserID       string                  `json:"userId"`
	Email        string                  `json:"email"`
	SystemRole   SystemRole              `json:"systemRole,omitempty"`
	ReviewGroups []ReviewGroupRole       `json:"reviewGroups"`
	Teams        []TeamRole              `json:"teams"`
	Translations []TranslationAssignment `json:"translations"`
}

// Normalize replaces nil collections with empty ones and drops duplicate
// review group entries, keeping the first. It returns rs for chaining.
func (rs *RoleSet) Normalize() *RoleSet {
	if rs.ReviewGroups == nil {
		rs.ReviewGroups = []ReviewGroupRole{}
	}
	if rs.Teams == nil {
		rs.Teams = []TeamRole{}
	}
	if rs.Translations == nil {
		rs.Translations = []TranslationAssignment{}
	}

	seen := make(map[string]bool, len(rs.ReviewGroups))
	unique := rs.ReviewGroups[:0]
	for _, rg := range rs.ReviewGroups {
		if seen[rg.ReviewGroupID] {
			continue
		}
		seen[rg.ReviewGroupID] = true
		unique = append(unique, rg)
	}
	rs.ReviewGroups = unique
	return rs
}

// IsSuperadmin reports whether the principal bypasses all rules
func (rs *RoleSet) IsSuperadmin() bool {
	return rs != nil && rs.SystemRole == SystemRoleSuperadmin
}

// AdministersReviewGroup reports whether the principal is admin of reviewGroupID
func (rs *RoleSet) AdministersReviewGroup(reviewGroupID string) bool {
	if reviewGroupID == "" {
		return false
	}
	for _, rg := range rs.ReviewGroups {
		if rg.ReviewGroupID == reviewGroupID && rg.Role == RoleReviewGroupAdmin {
			return true
		}
	}
	return false
}

// TeamRoleFor returns the strongest role any of the principal's teams holds
// on namespaceID, or "" when no team covers it.
func (rs *RoleSet) TeamRoleFor(namespaceID string) TeamRoleName {
	if namespaceID == "" {
		return ""
	}
	var best TeamRoleName
	for _, t := range rs.Teams {
		if t.Covers(namespaceID) && t.Role.rank() > best.rank() {
			best = t.Role
		}
	}
	return best
}

// MemberOfTeam reports whether the principal belongs to teamID
func (rs *RoleSet) MemberOfTeam(teamID string) bool {
	if teamID == "" {
		return false
	}
	for _, t := range rs.Teams {
		if t.TeamID == teamID {
			return true
		}
	}
	return false
}

// TranslatesNamespace reports whether any translation assignment covers
// namespaceID, in any language
func (rs *RoleSet) TranslatesNamespace(namespaceID string) bool {
	if namespaceID == "" {
		return false
	}
	for _, a := range rs.Translations {
		if a.Covers(namespaceID) {
			return true
		}
	}
	return false
}

// Translates reports whether an assignment for exactly language covers
// namespaceID
func (rs *RoleSet) Translates(language, namespaceID string) bool {
	if language == "" || namespaceID == "" {
		return false
	}
	for _, a := range rs.Translations {
		if a.Language == language && a.Covers(namespaceID) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

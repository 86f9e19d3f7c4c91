package rbac

import "fmt"

// Grant names the rung of the capability lattice that decided a request,
// from superadmin down to plain authenticated read
type Grant string

const (
	GrantSuperadmin       Grant = "superadmin"
	GrantReviewGroupAdmin Grant = "reviewGroupAdmin"
	GrantTeamEditor       Grant = "teamEditor"
	GrantTeamAuthor       Grant = "teamAuthor"
	GrantTeamMember       Grant = "teamMember"
	GrantTranslator       Grant = "translator"
	GrantSelf             Grant = "self"
	GrantAuthenticated    Grant = "authenticated"
	GrantNone             Grant = "none"
)

// RoleCheck records one role that was looked at while evaluating
type RoleCheck struct {
	Role    string `json:"role"`
	Type    string `json:"type"`
	Matched bool   `json:"matched"`
	Details string `json:"details,omitempty"`
}

// Verdict is an explained decision
type Verdict struct {
	Allowed bool        `json:"allowed"`
	Grant   Grant       `json:"grant"`
	Reason  string      `json:"reason"`
	Checks  []RoleCheck `json:"roleChecks"`
}

// Evaluate decides whether roles may perform req. It is pure and a nil role
// set is always denied.
func Evaluate(roles *RoleSet, req Request) bool {
	return Explain(roles, req).Allowed
}

// Explain evaluates req and reports which rule decided it
func Explain(roles *RoleSet, req Request) Verdict {
	if roles == nil {
		return Verdict{Grant: GrantNone, Reason: "not authenticated", Checks: []RoleCheck{}}
	}

	e := &evaluation{roles: roles, action: req.Action(), checks: []RoleCheck{}}
	if e.check(string(SystemRoleSuperadmin), "system", roles.IsSuperadmin(), "") {
		return e.allow(GrantSuperadmin, "superadmin bypass")
	}

	switch a := req.Attributes().(type) {
	case ReviewGroupAttrs:
		return e.reviewGroup(a)
	case NamespaceAttrs:
		return e.namespace(a)
	case ProjectAttrs:
		return e.project(a)
	case TeamAttrs:
		return e.team(a)
	case ContentAttrs:
		return e.content(a)
	case TranslationAttrs:
		return e.translation(a)
	case ReleaseAttrs:
		return e.release(a)
	case SpreadsheetAttrs:
		return e.spreadsheet(a)
	case UserAttrs:
		return e.user(a)
	default:
		return e.fallback(ActionRead, ActionList)
	}
}

type evaluation struct {
	roles  *RoleSet
	action Action
	checks []RoleCheck
}

func (e *evaluation) check(role, kind string, matched bool, details string) bool {
	e.checks = append(e.checks, RoleCheck{Role: role, Type: kind, Matched: matched, Details: details})
	return matched
}

func (e *evaluation) allow(g Grant, reason string) Verdict {
	return Verdict{Allowed: true, Grant: g, Reason: reason, Checks: e.checks}
}

func (e *evaluation) deny(reason string) Verdict {
	return Verdict{Allowed: false, Grant: GrantNone, Reason: reason, Checks: e.checks}
}

func (e *evaluation) is(actions ...Action) bool {
	for _, a := range actions {
		if e.action == a {
			return true
		}
	}
	return false
}

// limit allows the action only if it is one of actions, attributing the
// outcome to g
func (e *evaluation) limit(g Grant, actions ...Action) Verdict {
	if e.is(actions...) {
		return e.allow(g, fmt.Sprintf("%s may %s", g, e.action))
	}
	return e.deny(fmt.Sprintf("%s may not %s", g, e.action))
}

// fallback is the authenticated-read rung every rule ends on
func (e *evaluation) fallback(actions ...Action) Verdict {
	return e.limit(GrantAuthenticated, actions...)
}

func (e *evaluation) reviewGroupAdmin(reviewGroupID string) bool {
	if reviewGroupID == "" {
		return false
	}
	return e.check(string(RoleReviewGroupAdmin), "reviewGroup", e.roles.AdministersReviewGroup(reviewGroupID), reviewGroupID)
}

func (e *evaluation) teamRole(namespaceID string) TeamRoleName {
	if namespaceID == "" {
		return ""
	}
	role := e.roles.TeamRoleFor(namespaceID)
	name := string(role)
	if name == "" {
		name = "member"
	}
	e.check(name, "team", role != "", namespaceID)
	return role
}

func (e *evaluation) reviewGroup(a ReviewGroupAttrs) Verdict {
	if e.reviewGroupAdmin(a.ReviewGroupID) {
		return e.allow(GrantReviewGroupAdmin, "admin of review group "+a.ReviewGroupID)
	}
	if e.is(ActionCreate) {
		return e.deny("only superadmins create review groups")
	}
	return e.fallback(ActionRead, ActionList)
}

func (e *evaluation) namespace(a NamespaceAttrs) Verdict {
	if e.reviewGroupAdmin(a.ReviewGroupID) {
		return e.allow(GrantReviewGroupAdmin, "admin of review group "+a.ReviewGroupID)
	}
	switch e.teamRole(a.NamespaceID) {
	case TeamRoleEditor:
		if e.is(ActionCreate, ActionDelete) {
			return e.deny("editors cannot " + string(e.action) + " namespaces")
		}
		return e.allow(GrantTeamEditor, "editor on namespace "+a.NamespaceID)
	case TeamRoleAuthor:
		return e.limit(GrantTeamAuthor, ActionRead, ActionList)
	}
	return e.fallback(ActionRead, ActionList)
}

func (e *evaluation) project(a ProjectAttrs) Verdict {
	if e.reviewGroupAdmin(a.ReviewGroupID) {
		return e.allow(GrantReviewGroupAdmin, "admin of review group "+a.ReviewGroupID)
	}
	if a.TeamID != "" && e.check("member", "team", e.roles.MemberOfTeam(a.TeamID), a.TeamID) {
		if e.is(ActionDelete, ActionCreate, ActionAssignTeam) {
			return e.deny("team members cannot " + string(e.action) + " projects")
		}
		return e.allow(GrantTeamMember, "member of team "+a.TeamID)
	}
	return e.fallback(ActionRead, ActionList)
}

func (e *evaluation) team(a TeamAttrs) Verdict {
	if e.reviewGroupAdmin(a.ReviewGroupID) {
		return e.allow(GrantReviewGroupAdmin, "admin of review group "+a.ReviewGroupID)
	}
	if a.TeamID != "" && e.check("member", "team", e.roles.MemberOfTeam(a.TeamID), a.TeamID) {
		return e.limit(GrantTeamMember, ActionRead, ActionListMembers)
	}
	return e.fallback(ActionList, ActionRead)
}

// content covers element sets and vocabularies
func (e *evaluation) content(a ContentAttrs) Verdict {
	if a.NamespaceID == "" {
		return e.fallback(ActionRead, ActionList)
	}
	if e.reviewGroupAdmin(a.ReviewGroupID) {
		return e.allow(GrantReviewGroupAdmin, "admin of review group "+a.ReviewGroupID)
	}
	switch e.teamRole(a.NamespaceID) {
	case TeamRoleEditor:
		return e.allow(GrantTeamEditor, "editor on namespace "+a.NamespaceID)
	case TeamRoleAuthor:
		return e.limit(GrantTeamAuthor, ActionCreate, ActionRead, ActionUpdate)
	}
	if e.check("translator", "translation", e.roles.TranslatesNamespace(a.NamespaceID), a.NamespaceID) {
		return e.limit(GrantTranslator, ActionRead)
	}
	return e.fallback(ActionRead)
}

func (e *evaluation) translation(a TranslationAttrs) Verdict {
	if e.is(ActionApprove) && e.reviewGroupAdmin(a.ReviewGroupID) {
		return e.allow(GrantReviewGroupAdmin, "admin of review group "+a.ReviewGroupID)
	}
	if a.Language != "" && a.NamespaceID != "" &&
		e.check("translator", "translation", e.roles.Translates(a.Language, a.NamespaceID), a.Language+"/"+a.NamespaceID) {
		return e.limit(GrantTranslator, ActionRead, ActionUpdate)
	}
	return e.fallback(ActionRead)
}

func (e *evaluation) release(a ReleaseAttrs) Verdict {
	switch e.action {
	case ActionCreate, ActionPublish, ActionDelete:
		if a.ReviewGroupID == "" {
			return e.deny(string(e.action) + " requires a review group")
		}
		if e.reviewGroupAdmin(a.ReviewGroupID) {
			return e.allow(GrantReviewGroupAdmin, "admin of review group "+a.ReviewGroupID)
		}
		return e.deny("not an admin of review group " + a.ReviewGroupID)
	case ActionUpdate:
		if e.teamRole(a.NamespaceID) == TeamRoleEditor {
			return e.allow(GrantTeamEditor, "editor on namespace "+a.NamespaceID)
		}
		return e.deny("updating a release requires an editor team on its namespace")
	}
	return e.fallback(ActionRead)
}

func (e *evaluation) spreadsheet(a SpreadsheetAttrs) Verdict {
	switch e.teamRole(a.NamespaceID) {
	case TeamRoleEditor:
		return e.allow(GrantTeamEditor, "editor on namespace "+a.NamespaceID)
	case TeamRoleAuthor:
		return e.limit(GrantTeamAuthor, ActionRead, ActionEdit)
	}
	return e.fallback(ActionRead)
}

func (e *evaluation) user(a UserAttrs) Verdict {
	switch e.action {
	case ActionInvite:
		if e.reviewGroupAdmin(a.ReviewGroupID) {
			return e.allow(GrantReviewGroupAdmin, "admin of review group "+a.ReviewGroupID)
		}
		return e.deny("inviting requires review group admin")
	case ActionRead, ActionUpdate:
		self := a.UserID != "" && a.UserID == e.roles.UserID
		if e.check("self", "user", self, a.UserID) {
			return e.allow(GrantSelf, "own profile")
		}
	}
	return e.deny(fmt.Sprintf("cannot %s other users", e.action))
}

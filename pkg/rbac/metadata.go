package rbac

import (
	"fmt"

	"github.com/iflastandards/standards-authz/pkg/identity"
)

// Metadata keys read from the identity provider
const (
	metaRole         = "role"
	metaSystemRole   = "systemRole"
	metaSystem       = "system"
	metaReviewGroups = "reviewGroups"
	metaTeams        = "teams"
	metaTranslations = "translations"
)

// MalformedFunc is told about metadata that is skipped or kept despite not
// matching the expected shape. field is the metadata key, detail says what
// was wrong.
type MalformedFunc func(field, detail string)

// BuildRoleSet turns an identity's untrusted metadata into a RoleSet.
// Parsing never fails: a collection that is not an array becomes empty and
// elements that cannot be matched against anything are skipped. Elements
// that are incomplete but still usable are kept as given. Every deviation is
// reported through report.
func BuildRoleSet(ident *identity.Identity, report MalformedFunc) *RoleSet {
	if report == nil {
		report = func(string, string) {}
	}
	rs := &RoleSet{UserID: ident.ID, Email: ident.Email}
	meta := ident.Metadata

	rs.SystemRole = parseSystemRole(meta, report)
	rs.ReviewGroups = parseReviewGroups(meta[metaReviewGroups], report)
	rs.Teams = parseTeams(meta[metaTeams], report)
	rs.Translations = parseTranslations(meta[metaTranslations], report)
	return rs.Normalize()
}

func parseSystemRole(meta map[string]any, report MalformedFunc) SystemRole {
	for _, key := range []string{metaRole, metaSystemRole, metaSystem} {
		v, ok := meta[key]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			report(metaSystemRole, fmt.Sprintf("%s is not a string", key))
			continue
		}
		if s == "" {
			continue
		}
		if SystemRole(s) == SystemRoleSuperadmin {
			return SystemRoleSuperadmin
		}
		report(metaSystemRole, fmt.Sprintf("unknown system role %q", s))
	}
	return ""
}

// elements returns v as a list, reporting anything else that is not absent
func elements(field string, v any, report MalformedFunc) []any {
	if v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		report(field, fmt.Sprintf("expected an array, got %T", v))
		return nil
	}
	return list
}

// parseReviewGroups keeps admin entries only; admin is the one role a
// review group confers, so any other entry grants nothing.
func parseReviewGroups(v any, report MalformedFunc) []ReviewGroupRole {
	var out []ReviewGroupRole
	for i, el := range elements(metaReviewGroups, v, report) {
		m, ok := el.(map[string]any)
		if !ok {
			report(metaReviewGroups, fmt.Sprintf("element %d is not an object", i))
			continue
		}
		id, _ := m["reviewGroupId"].(string)
		role, _ := m["role"].(string)
		if id == "" || ReviewGroupRoleName(role) != RoleReviewGroupAdmin {
			report(metaReviewGroups, fmt.Sprintf("element %d needs reviewGroupId and role admin", i))
			continue
		}
		out = append(out, ReviewGroupRole{ReviewGroupID: id, Role: RoleReviewGroupAdmin})
	}
	return out
}

// parseTeams keeps every team that names a teamId and at least one
// namespace. Other gaps are reported but the entry is kept as given.
func parseTeams(v any, report MalformedFunc) []TeamRole {
	var out []TeamRole
	for i, el := range elements(metaTeams, v, report) {
		m, ok := el.(map[string]any)
		if !ok {
			report(metaTeams, fmt.Sprintf("element %d is not an object", i))
			continue
		}
		teamID, _ := m["teamId"].(string)
		role := TeamRoleName(stringOf(m["role"]))
		reviewGroup, _ := m["reviewGroup"].(string)
		namespaces := stringList(m["namespaces"])

		if teamID == "" {
			report(metaTeams, fmt.Sprintf("element %d has no teamId", i))
			continue
		}
		if len(namespaces) == 0 {
			report(metaTeams, fmt.Sprintf("team %s has no namespaces", teamID))
			continue
		}
		switch {
		case role != TeamRoleEditor && role != TeamRoleAuthor:
			report(metaTeams, fmt.Sprintf("team %s has unknown role %q", teamID, role))
		case reviewGroup == "":
			report(metaTeams, fmt.Sprintf("team %s has no reviewGroup", teamID))
		}
		out = append(out, TeamRole{TeamID: teamID, Role: role, ReviewGroup: reviewGroup, Namespaces: namespaces})
	}
	return out
}

// parseTranslations keeps every assignment with a language and at least one
// namespace. Language codes outside 2-5 characters are reported, not dropped.
func parseTranslations(v any, report MalformedFunc) []TranslationAssignment {
	var out []TranslationAssignment
	for i, el := range elements(metaTranslations, v, report) {
		m, ok := el.(map[string]any)
		if !ok {
			report(metaTranslations, fmt.Sprintf("element %d is not an object", i))
			continue
		}
		language, _ := m["language"].(string)
		namespaces := stringList(m["namespaces"])

		if language == "" || len(namespaces) == 0 {
			report(metaTranslations, fmt.Sprintf("element %d needs language and namespaces", i))
			continue
		}
		if len(language) < 2 || len(language) > 5 {
			report(metaTranslations, fmt.Sprintf("element %d has unusual language %q", i, language))
		}
		out = append(out, TranslationAssignment{Language: language, Namespaces: namespaces})
	}
	return out
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

// stringList keeps the non-empty strings of a JSON array
func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, el := range list {
		if s, ok := el.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

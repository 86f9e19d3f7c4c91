package rbac

import (
	"fmt"
	"strconv"
)

// Attributes identify the resource a request is about. Each resource type has
// its own variant; every field is optional and an empty value means absent.
type Attributes interface {
	// Map returns the non-empty fields keyed by their wire names
	Map() map[string]string
	isAttributes()
}

type ReviewGroupAttrs struct {
	ReviewGroupID string `json:"reviewGroupId,omitempty"`
}

type NamespaceAttrs struct {
	NamespaceID   string `json:"namespaceId,omitempty"`
	ReviewGroupID string `json:"reviewGroupId,omitempty"`
}

type ProjectAttrs struct {
	ProjectID     string `json:"projectId,omitempty"`
	TeamID        string `json:"teamId,omitempty"`
	ReviewGroupID string `json:"reviewGroupId,omitempty"`
}

type TeamAttrs struct {
	TeamID        string `json:"teamId,omitempty"`
	ReviewGroupID string `json:"reviewGroupId,omitempty"`
}

// ContentAttrs is shared by element sets and vocabularies
type ContentAttrs struct {
	NamespaceID   string `json:"namespaceId,omitempty"`
	ReviewGroupID string `json:"reviewGroupId,omitempty"`
	VocabularyID  string `json:"vocabularyId,omitempty"`
	ElementSetID  string `json:"elementSetId,omitempty"`
}

type TranslationAttrs struct {
	Language      string `json:"language,omitempty"`
	NamespaceID   string `json:"namespaceId,omitempty"`
	ReviewGroupID string `json:"reviewGroupId,omitempty"`
	TranslationID string `json:"translationId,omitempty"`
}

type ReleaseAttrs struct {
	ReleaseID     string `json:"releaseId,omitempty"`
	NamespaceID   string `json:"namespaceId,omitempty"`
	ReviewGroupID string `json:"reviewGroupId,omitempty"`
}

type SpreadsheetAttrs struct {
	SpreadsheetID string `json:"spreadsheetId,omitempty"`
	NamespaceID   string `json:"namespaceId,omitempty"`
}

type DocumentationAttrs struct {
	DocID       string `json:"docId,omitempty"`
	NamespaceID string `json:"namespaceId,omitempty"`
}

type DctapAttrs struct {
	ProfileID   string `json:"profileId,omitempty"`
	NamespaceID string `json:"namespaceId,omitempty"`
}

type UserAttrs struct {
	UserID        string `json:"userId,omitempty"`
	ReviewGroupID string `json:"reviewGroupId,omitempty"`
}

func (ReviewGroupAttrs) isAttributes()   {}
func (NamespaceAttrs) isAttributes()     {}
func (ProjectAttrs) isAttributes()       {}
func (TeamAttrs) isAttributes()          {}
func (ContentAttrs) isAttributes()       {}
func (TranslationAttrs) isAttributes()   {}
func (ReleaseAttrs) isAttributes()       {}
func (SpreadsheetAttrs) isAttributes()   {}
func (DocumentationAttrs) isAttributes() {}
func (DctapAttrs) isAttributes()         {}
func (UserAttrs) isAttributes()          {}

func (a ReviewGroupAttrs) Map() map[string]string {
	return fields("reviewGroupId", a.ReviewGroupID)
}

func (a NamespaceAttrs) Map() map[string]string {
	return fields("namespaceId", a.NamespaceID, "reviewGroupId", a.ReviewGroupID)
}

func (a ProjectAttrs) Map() map[string]string {
	return fields("projectId", a.ProjectID, "teamId", a.TeamID, "reviewGroupId", a.ReviewGroupID)
}

func (a TeamAttrs) Map() map[string]string {
	return fields("teamId", a.TeamID, "reviewGroupId", a.ReviewGroupID)
}

func (a ContentAttrs) Map() map[string]string {
	return fields("namespaceId", a.NamespaceID, "reviewGroupId", a.ReviewGroupID,
		"vocabularyId", a.VocabularyID, "elementSetId", a.ElementSetID)
}

func (a TranslationAttrs) Map() map[string]string {
	return fields("language", a.Language, "namespaceId", a.NamespaceID,
		"reviewGroupId", a.ReviewGroupID, "translationId", a.TranslationID)
}

func (a ReleaseAttrs) Map() map[string]string {
	return fields("releaseId", a.ReleaseID, "namespaceId", a.NamespaceID, "reviewGroupId", a.ReviewGroupID)
}

func (a SpreadsheetAttrs) Map() map[string]string {
	return fields("spreadsheetId", a.SpreadsheetID, "namespaceId", a.NamespaceID)
}

func (a DocumentationAttrs) Map() map[string]string {
	return fields("docId", a.DocID, "namespaceId", a.NamespaceID)
}

func (a DctapAttrs) Map() map[string]string {
	return fields("profileId", a.ProfileID, "namespaceId", a.NamespaceID)
}

func (a UserAttrs) Map() map[string]string {
	return fields("userId", a.UserID, "reviewGroupId", a.ReviewGroupID)
}

// fields builds a map from key/value pairs, skipping empty values
func fields(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			m[kv[i]] = kv[i+1]
		}
	}
	return m
}

// DecodeAttributes builds the variant for t from a loose map. Unknown keys
// are ignored; strings are used as-is, numbers and booleans are formatted,
// anything else is treated as absent.
func DecodeAttributes(t ResourceType, raw map[string]any) Attributes {
	get := func(key string) string { return stringValue(raw[key]) }

	switch t {
	case ResourceReviewGroup:
		return ReviewGroupAttrs{ReviewGroupID: get("reviewGroupId")}
	case ResourceNamespace:
		return NamespaceAttrs{NamespaceID: get("namespaceId"), ReviewGroupID: get("reviewGroupId")}
	case ResourceProject:
		return ProjectAttrs{ProjectID: get("projectId"), TeamID: get("teamId"), ReviewGroupID: get("reviewGroupId")}
	case ResourceTeam:
		return TeamAttrs{TeamID: get("teamId"), ReviewGroupID: get("reviewGroupId")}
	case ResourceElementSet, ResourceVocabulary:
		return ContentAttrs{
			NamespaceID:   get("namespaceId"),
			ReviewGroupID: get("reviewGroupId"),
			VocabularyID:  get("vocabularyId"),
			ElementSetID:  get("elementSetId"),
		}
	case ResourceTranslation:
		return TranslationAttrs{
			Language:      get("language"),
			NamespaceID:   get("namespaceId"),
			ReviewGroupID: get("reviewGroupId"),
			TranslationID: get("translationId"),
		}
	case ResourceRelease:
		return ReleaseAttrs{ReleaseID: get("releaseId"), NamespaceID: get("namespaceId"), ReviewGroupID: get("reviewGroupId")}
	case ResourceSpreadsheet:
		return SpreadsheetAttrs{SpreadsheetID: get("spreadsheetId"), NamespaceID: get("namespaceId")}
	case ResourceDocumentation:
		return DocumentationAttrs{DocID: get("docId"), NamespaceID: get("namespaceId")}
	case ResourceDctap:
		return DctapAttrs{ProfileID: get("profileId"), NamespaceID: get("namespaceId")}
	case ResourceUser:
		return UserAttrs{UserID: get("userId"), ReviewGroupID: get("reviewGroupId")}
	default:
		return nil
	}
}

func emptyAttributes(t ResourceType) Attributes {
	return DecodeAttributes(t, nil)
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int, int64, bool:
		return fmt.Sprint(val)
	default:
		return ""
	}
}

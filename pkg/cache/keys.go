// Package cache provides the decision cache: a TTL store shared by resolved
// role sets and boolean permission decisions.
//
// CRITICAL INVARIANT: SORTED ORDER REQUIREMENT
// Permission keys MUST encode attributes in key-sorted order so that the same
// attribute mapping produces the same key regardless of insertion order.
// encoding/json sorts map keys, and PermissionKey relies on that.
//
// Key formats (v1):
//
//	role set:   auth_context:{userId}
//	permission: {"userId":...,"resourceType":...,"action":...,"attributes":{sorted}}
//
// CHANGING THESE FORMATS ORPHANS EVERY CACHED ENTRY. Peers on the invalidation
// bus exchange user IDs and resource IDs, never keys, so a rolling deploy is
// safe; a format change only costs one TTL of cold cache.
package cache

import (
	"encoding/json"
	"strings"
)

const roleSetPrefix = "auth_context:"

// Entry kinds, also used as metric labels
const (
	KindRoleSet    = "role_set"
	KindPermission = "permission"
	KindOther      = "other"
)

type permissionKey struct {
	UserID       string            `json:"userId"`
	ResourceType string            `json:"resourceType"`
	Action       string            `json:"action"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// PermissionKey builds the deterministic key for a permission decision.
// Empty attribute values are dropped so that an absent attribute and an empty
// one share a key.
func PermissionKey(userID, resourceType, action string, attrs map[string]string) string {
	var clean map[string]string
	for k, v := range attrs {
		if v == "" {
			continue
		}
		if clean == nil {
			clean = make(map[string]string, len(attrs))
		}
		clean[k] = v
	}

	b, _ := json.Marshal(permissionKey{
		UserID:       userID,
		ResourceType: resourceType,
		Action:       action,
		Attributes:   clean,
	})
	return string(b)
}

// RoleSetKey builds the key for a user's resolved role set
func RoleSetKey(userID string) string {
	return roleSetPrefix + userID
}

// tags are parsed from a key once, at Set time, so invalidation can match
// exact IDs instead of substrings (u1 must not match u10)
type tags struct {
	kind         string
	userID       string
	resourceType string
	values       []string
}

func parseTags(key string) tags {
	if strings.HasPrefix(key, roleSetPrefix) {
		return tags{kind: KindRoleSet, userID: strings.TrimPrefix(key, roleSetPrefix)}
	}

	if strings.HasPrefix(key, "{") {
		var pk permissionKey
		if err := json.Unmarshal([]byte(key), &pk); err == nil && pk.UserID != "" {
			t := tags{
				kind:         KindPermission,
				userID:       pk.UserID,
				resourceType: pk.ResourceType,
			}
			for _, v := range pk.Attributes {
				t.values = append(t.values, v)
			}
			return t
		}
	}

	return tags{kind: KindOther}
}

func (t tags) matchesUser(key, userID string) bool {
	if t.kind == KindOther {
		return strings.Contains(key, userID)
	}
	return t.userID == userID
}

func (t tags) matchesResource(key, resourceType, resourceID string) bool {
	if t.kind == KindOther {
		return strings.Contains(key, resourceType) && (resourceID == "" || strings.Contains(key, resourceID))
	}
	if t.resourceType != resourceType {
		return false
	}
	if resourceID == "" {
		return true
	}
	for _, v := range t.values {
		if v == resourceID {
			return true
		}
	}
	return false
}

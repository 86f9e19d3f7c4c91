package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/iflastandards/standards-authz/pkg/httputil"
	"github.com/iflastandards/standards-authz/pkg/observability"
	"github.com/iflastandards/standards-authz/pkg/rbac"
)

// visible reports whether a caller with access a may see ns
func visible(a *rbac.Accessible, ns *Namespace) bool {
	if a == nil {
		return false
	}
	if a.All || ns.Visibility == VisibilityPublic || a.CanReachNamespace(ns.ID) {
		return true
	}
	for _, rg := range a.ReviewGroups {
		if rg == ns.ReviewGroup {
			return true
		}
	}
	return false
}

// listNamespaces handles GET /namespaces
func (s *Server) listNamespaces(w http.ResponseWriter, r *http.Request) {
	roles, _ := rbac.RoleSetFromContext(r)
	accessible := rbac.AccessibleResources(roles)

	all, err := s.storage.ListNamespaces()
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to list namespaces")
		httputil.WriteInternalError(w, r)
		return
	}

	reviewGroup := httputil.ParseQueryString(r, "reviewGroup", "")
	namespaces := make([]*Namespace, 0, len(all))
	for _, ns := range all {
		if !visible(accessible, ns) {
			continue
		}
		if reviewGroup != "" && ns.ReviewGroup != reviewGroup {
			continue
		}
		namespaces = append(namespaces, ns)
	}
	httputil.WriteData(w, namespaces)
}

// getNamespace handles GET /namespaces/{namespace}. Private namespaces the
// caller cannot reach are reported as missing.
func (s *Server) getNamespace(w http.ResponseWriter, r *http.Request) {
	id := httputil.PathString(r, "namespace")
	ns, err := s.storage.GetNamespace(id)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}

	roles, _ := rbac.RoleSetFromContext(r)
	if !visible(rbac.AccessibleResources(roles), ns) {
		httputil.WriteNotFound(w, r, "namespace not found")
		return
	}
	httputil.WriteData(w, ns)
}

// createNamespace handles POST /namespaces
func (s *Server) createNamespace(w http.ResponseWriter, r *http.Request) {
	var req NamespaceCreate
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" || req.Name == "" || req.ReviewGroupID == "" {
		httputil.WriteBadRequest(w, r, "id, name and reviewGroupId are required")
		return
	}
	if req.Visibility == "" {
		req.Visibility = VisibilityPublic
	}
	if req.Visibility != VisibilityPublic && req.Visibility != VisibilityPrivate {
		httputil.WriteBadRequest(w, r, "visibility must be public or private")
		return
	}

	roles, _ := rbac.RoleSetFromContext(r)
	if !rbac.NewGuards(s.checker, roles).CanCreateNamespace(r.Context(), req.ReviewGroupID) {
		httputil.WriteAPIError(w, r, http.StatusForbidden, rbac.CodePermissionDenied,
			"You don't have permission to create namespace", nil)
		return
	}

	ns := &Namespace{
		ID:           req.ID,
		Name:         req.Name,
		Description:  req.Description,
		ReviewGroup:  req.ReviewGroupID,
		Projects:     []string{},
		ElementSets:  []string{},
		Vocabularies: []string{},
		Translations: []string{},
		Releases:     []string{},
		Status:       "draft",
		Visibility:   req.Visibility,
		UpdatedBy:    roles.UserID,
	}
	if err := s.storage.CreateNamespace(ns); err != nil {
		s.writeStorageError(w, r, err)
		return
	}
	httputil.WriteCreated(w, ns)
}

// namespaceUpdateRequest builds the permission check for PUT
// /namespaces/{namespace}, adding the owning review group when the
// namespace exists
func (s *Server) namespaceUpdateRequest(r *http.Request) (rbac.Request, error) {
	attrs := rbac.NamespaceAttrs{NamespaceID: httputil.PathString(r, "namespace")}
	if ns, err := s.storage.GetNamespace(attrs.NamespaceID); err == nil {
		attrs.ReviewGroupID = ns.ReviewGroup
	}
	return rbac.Namespace(rbac.NamespaceUpdate, attrs), nil
}

// updateNamespace handles PUT /namespaces/{namespace}
func (s *Server) updateNamespace(w http.ResponseWriter, r *http.Request) {
	id := httputil.PathString(r, "namespace")

	var patch NamespacePatch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}
	if patch.Visibility != nil && *patch.Visibility != VisibilityPublic && *patch.Visibility != VisibilityPrivate {
		httputil.WriteBadRequest(w, r, "visibility must be public or private")
		return
	}

	roles, _ := rbac.RoleSetFromContext(r)
	ns, err := s.storage.UpdateNamespace(id, patch, roles.UserID)
	if err != nil {
		s.writeStorageError(w, r, err)
		return
	}

	// cached decisions about this namespace may depend on what just changed
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateResource(r.Context(), string(rbac.ResourceNamespace), id); err != nil {
			observability.FromContext(r.Context()).WithError(err).Warn("Failed to invalidate namespace decisions")
		}
	}
	httputil.WriteData(w, ns)
}

func (s *Server) writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNamespaceNotFound):
		httputil.WriteNotFound(w, r, "namespace not found")
	case errors.Is(err, ErrNamespaceExists):
		httputil.WriteAPIError(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		observability.FromContext(r.Context()).WithError(err).Error("Namespace storage error")
		httputil.WriteInternalError(w, r)
	}
}

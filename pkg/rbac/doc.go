// Package rbac decides what a signed-in user of the standards admin
// application may do.
//
// # Overview
//
// A caller's roles come from the identity provider's metadata and are
// resolved into a RoleSet:
//
//   - SystemRole: superadmin, the only role that bypasses every rule
//   - ReviewGroups: review groups the caller administers
//   - Teams: editor or author membership in a team working on namespaces
//   - Translations: languages the caller translates, per namespace
//
// Capabilities form a lattice: superadmin, review group admin, team editor,
// team author, translator, then authenticated read-only access.
//
// # Requests
//
// Every resource type has a closed set of actions. Typed constructors make a
// mismatched pair a compile error:
//
//	req := rbac.Vocabulary(rbac.VocabularyUpdate, rbac.ContentAttrs{NamespaceID: "isbd"})
//
// JSON boundaries use ParseRequest, which rejects unknown resource types and
// actions outside the type's set:
//
//	req, err := rbac.ParseRequest("vocabulary", "update", map[string]any{"namespaceId": "isbd"})
//
// Attributes are optional. A missing attribute never errors; the request
// falls through to the resource type's default rule, which usually allows
// read only.
//
// # Evaluation
//
// Evaluate and Explain are pure functions of a RoleSet and a Request.
// Explain also reports which roles were consulted and which rung of the
// lattice decided the outcome.
//
// # Caching
//
// Resolver caches role sets and Checker caches decisions in a shared
// cache.DecisionCache. Decision TTLs depend on the resource type (ten
// minutes for review groups and namespaces, two for vocabularies and
// translations, one for spreadsheets). Role changes must be followed by
// cache.Invalidator.InvalidateUser, otherwise stale decisions survive until
// they expire.
//
// # HTTP
//
//	resolver := rbac.NewResolver(source, decisionCache)
//	checker := rbac.NewChecker(decisionCache, rbac.WithAudit(auditLog))
//	mw := rbac.NewMiddleware(resolver, checker)
//
//	router.Handle("/namespaces/{namespace}", mw.Require(func(r *http.Request) (rbac.Request, error) {
//		return rbac.Namespace(rbac.NamespaceUpdate, rbac.NamespaceAttrs{NamespaceID: mux.Vars(r)["namespace"]}), nil
//	})(handler))
//
// Denials use the standard error envelope: 401 UNAUTHENTICATED without an
// identity, 403 PERMISSION_DENIED when the evaluator says no, 403
// INSUFFICIENT_ROLE from RequireSuperadmin and 500 when roles cannot be
// resolved.
package rbac

// Package api provides the HTTP server for the standards admin
// authorization service.
//
// # Overview
//
// Server mounts the authorization endpoints from package rbac under /api
// next to a small namespace API backed by mock data. The namespace routes
// show the middleware in use: listing filters by what the caller can reach,
// and updates are guarded by a namespace update check that carries the
// owning review group.
//
// # Endpoints
//
//	GET    /api/auth/context             caller's role set
//	POST   /api/auth/check               one permission check (?explain=true)
//	POST   /api/auth/check/batch         up to 100 checks
//	GET    /api/auth/accessible          reachable review groups, namespaces, teams
//	GET    /api/auth/matrix              every resource/action for the caller
//	GET    /api/admin/cache/stats        superadmin
//	GET    /api/admin/cache/state        superadmin
//	POST   /api/admin/cache/invalidate   superadmin
//	GET    /api/admin/decisions          superadmin, decision log enabled
//	GET    /api/namespaces               ?reviewGroup=
//	POST   /api/namespaces
//	GET    /api/namespaces/{namespace}
//	PUT    /api/namespaces/{namespace}
//
// Health and metrics live on a separate router:
//
//	router := api.NewHealthRouter(healthChecker, registry)
//	// /health/live, /health/ready, /metrics
//
// # Usage
//
//	server := api.NewServer(api.Options{
//		Middleware: rbac.NewMiddleware(resolver, checker),
//		Checker:    checker,
//		Cache:      decisionCache,
//		Metrics:    metrics,
//		Logger:     logger,
//	})
//	http.ListenAndServe(":8080", server)
package api

// Package audit keeps a bounded, in-memory record of authorization decisions
// for debugging why a request was allowed or denied.
//
// # Overview
//
// Every decision made by rbac.Checker can be logged with the roles that were
// consulted, whether it came from the decision cache and how long it took.
// The log is a ring buffer (1000 decisions by default); the oldest record is
// dropped when it is full. Nothing is persisted.
//
// # Usage Example
//
//	log := audit.NewMemoryLogger(audit.Config{MaxRecords: 500, Verbose: true}, logger)
//	checker := rbac.NewChecker(decisionCache, rbac.WithAudit(log))
//
//	// later
//	denied := log.Search(audit.Filter{UserID: "user_123", Result: audit.ResultDenied})
//
// # HTTP
//
// Handlers exposes the log under /decisions (list, stats, export as JSON,
// NDJSON or CSV, and clear). Mount it behind an administrator check.
package audit

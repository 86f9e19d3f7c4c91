// Package config loads the authorization service's configuration from
// environment variables.
//
// # Configuration Structure
//
// Every variable carries the AUTHZ_ prefix followed by its section.
//
// Server settings:
//
//	AUTHZ_SERVER_HOST="0.0.0.0"
//	AUTHZ_SERVER_PORT="8080"
//	AUTHZ_SERVER_HEALTH_PORT="9090"
//	AUTHZ_SERVER_READ_TIMEOUT="15s"
//	AUTHZ_SERVER_MAX_BODY_BYTES="1048576"
//
// Decision cache:
//
//	AUTHZ_CACHE_ENABLED="true"
//	AUTHZ_CACHE_MAX_SIZE="1000"
//	AUTHZ_CACHE_DEFAULT_TTL="5m"
//	AUTHZ_CACHE_ROLE_SET_TTL="10m"
//	AUTHZ_CACHE_RESOURCE_TTLS="namespace:15m,spreadsheet:30s"
//
// Identity:
//
//	AUTHZ_IDENTITY_MODE="oidc"  # oidc, static
//	AUTHZ_IDENTITY_ISSUER_URL="https://clerk.example.org"
//	AUTHZ_IDENTITY_CLIENT_ID="admin-app"
//	AUTHZ_IDENTITY_METADATA_CLAIM="public_metadata"
//	AUTHZ_IDENTITY_STATIC_USERS_FILE="/etc/authz/users.yaml"
//
// Invalidation bus (optional):
//
//	AUTHZ_REDIS_URL="redis://localhost:6379/0"
//	AUTHZ_REDIS_CHANNEL="authz:invalidations"
//
// Observability:
//
//	AUTHZ_OBSERVABILITY_LOG_LEVEL="info"  # debug, info, warn, error
//	AUTHZ_OBSERVABILITY_OTEL_ENABLED="true"
//	AUTHZ_OBSERVABILITY_OTEL_ENDPOINT="otel-collector:4317"
//
// Debugging:
//
//	AUTHZ_DEBUG_ENABLED="true"        # decision log under /api/admin/decisions
//	AUTHZ_DEBUG_ERROR_DETAILS="true"  # attributes and reasons in 403 bodies
//
// # Overlay
//
// AUTHZ_CONFIG_FILE names a YAML file whose resource TTLs override the
// environment's. WatchOverlay reloads it on change:
//
//	cache:
//	  resourceTtls:
//	    namespace: 15m
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	decisionCache, err := cache.New(cfg.CacheConfig())
package config

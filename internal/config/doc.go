// Package config handles configuration loading for attache-server.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ATTACHE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/attache/server.yaml
//  3. ~/.config/attache/server.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${ATTACHE_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "localhost:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/attache/attache.db"
//
// Relying party (how the service identifies itself to authenticators):
//
//	relying_party:
//	  id: "example.com"
//	  name: "attaché"
//	  origins:
//	    - "https://app.example.com"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${ATTACHE_JWT_SECRET}"  # required
//	  token_lifetime: "168h"               # session token validity
//	  challenge_ttl: "5m"                  # ceremony completion window
//	  rate_limit_per_minute: 30            # 0 disables rate limiting
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_lifetime: "168h"
//	  challenge_ttl: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Validation
//
// Load() validates:
//
//   - Database path presence
//   - JWT secret presence
//   - Relying party ID and at least one origin
//   - Duration format validity and positivity
//
// # Usage
//
//	cfg, err := config.Load("/etc/attache/server.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

// Package config handles configuration loading for the opdesk console.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation; unset tunables fall back to each
// component's defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	platform:
//	  token: "${OPDESK_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	drafts:
//	  autosave_debounce: "500ms"
//	  suppression_window: "100ms"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Platform endpoints and credentials:
//
//	platform:
//	  base_url: "https://support.example.com/api"
//	  socket_url: "wss://support.example.com"
//	  agent_id: "agent-7"
//	  token: "${OPDESK_TOKEN}"
//	  request_timeout: "15s"
//
// History pagination:
//
//	history:
//	  page_limit: 20
//
// Draft persistence:
//
//	drafts:
//	  path: "~/.local/state/opdesk/drafts.db"
//	  autosave_debounce: "500ms"
//	  suppression_window: "100ms"
//
// Typing indicator:
//
//	typing:
//	  idle_timeout: "2s"
//
// Viewport thresholds, in pixels:
//
//	scroll:
//	  edge_threshold: 100
//	  top_threshold: 100
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Metrics endpoint:
//
//	metrics:
//	  enabled: false
//	  addr: "127.0.0.1:9090"
//	  path: "/metrics"
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("opdesk.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

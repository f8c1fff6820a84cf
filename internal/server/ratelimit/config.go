package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig limits one method on a path. A Path ending in "/" is a prefix.
// Limit requests are allowed per Window, 0 meaning unlimited. Burst defaults to Limit.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int
	Window time.Duration
	Burst  int
}

// LoadConfig reads rate limiting settings from RATE_LIMIT_* environment variables.
// RATE_LIMIT_COMPOSE_LIMIT and RATE_LIMIT_COMPOSE_WINDOW tune the report and
// submit routes.
func LoadConfig() *Config {
	if !envValue("RATE_LIMIT_ENABLED", true, strconv.ParseBool) {
		return &Config{Enabled: false}
	}

	endpoints := DefaultEndpointConfigs()
	for i := range endpoints {
		if endpoints[i].Method == "POST" && endpoints[i].Path == ordersPrefix {
			endpoints[i].Limit = envValue("RATE_LIMIT_COMPOSE_LIMIT", endpoints[i].Limit, strconv.Atoi)
			endpoints[i].Window = envValue("RATE_LIMIT_COMPOSE_WINDOW", endpoints[i].Window, time.ParseDuration)
		}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    envValue("RATE_LIMIT_DEFAULT_LIMIT", 1000, strconv.Atoi),
		DefaultWindow:   envValue("RATE_LIMIT_DEFAULT_WINDOW", time.Minute, time.ParseDuration),
		CleanupInterval: envValue("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute, time.ParseDuration),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: endpoints,
	}
}

const ordersPrefix = "/orders/"

// DefaultEndpointConfigs returns the per-route limits. Routes not listed fall back
// to the default limit.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Composition and submission render, fetch and upload.
		{Path: ordersPrefix, Method: "POST", Limit: 60, Window: time.Hour, Burst: 5},
		{Path: ordersPrefix, Method: "GET", Limit: 300, Window: time.Minute, Burst: 30},
		{Path: "/submissions/", Method: "GET", Limit: 300, Window: time.Minute, Burst: 30},
	}
}

// MatchEndpoint returns the configuration for a request, or nil when none applies.
// An exact path wins over prefixes, and the longest prefix wins among prefixes.
// GET /health is never limited.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == "GET" {
		return &EndpointConfig{Path: path, Method: method}
	}

	var best *EndpointConfig
	for i := range configs {
		ec := &configs[i]
		if ec.Method != method {
			continue
		}
		if ec.Path == path {
			return ec
		}
		if strings.HasSuffix(ec.Path, "/") && strings.HasPrefix(path, ec.Path) {
			if best == nil || len(ec.Path) > len(best.Path) {
				best = ec
			}
		}
	}
	return best
}

// envValue parses an environment variable, keeping def when it is unset or invalid.
func envValue[T any](key string, def T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}

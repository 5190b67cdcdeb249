// Package config reads runtime configuration for the server and the client
// from the environment.
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort       = "8080"
	DefaultOrigin     = "http://localhost"
	DefaultTradesPath = "/api/trades"
	DefaultCacheTTL   = 30 * time.Second
)

// Server holds settings for cmd/server.
type Server struct {
	Port string
	// DatabaseURL selects PostgreSQL; empty means the in-memory store.
	DatabaseURL string
	// RedisURL enables the read-through cache (PostgreSQL only).
	RedisURL     string
	CacheTTL     time.Duration
	TradesPath   string
	SeedFixtures bool
}

// Addr renders the listen address.
func (s Server) Addr() string {
	return ":" + s.Port
}

// LoadServer reads the server configuration.
func LoadServer() Server {
	return Server{
		Port:         getenv("PORT", DefaultPort),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		CacheTTL:     parseDurationEnv("CACHE_TTL", DefaultCacheTTL),
		TradesPath:   cleanPath(getenv("TRADES_PATH", DefaultTradesPath)),
		SeedFixtures: parseBoolEnv("SEED_FIXTURES", true),
	}
}

// SplitAPIBase splits an API base URL into the transport origin and the
// trade resource path, so a base of "https://api.example.com/v2/trades"
// yields ("https://api.example.com", "/v2/trades"). An empty base gives
// the local defaults; a value that is not an absolute URL is used as the
// origin verbatim with the default path.
func SplitAPIBase(base string) (origin, tradesPath string) {
	if base == "" {
		return DefaultOrigin, DefaultTradesPath
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return base, DefaultTradesPath
	}
	origin = u.Scheme + "://" + u.Host
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		return origin, DefaultTradesPath
	}
	return origin, p
}

func cleanPath(p string) string {
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return DefaultTradesPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

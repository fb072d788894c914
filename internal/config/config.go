// Package config loads gatewayd's runtime settings from the environment,
// following the teacher's getString/getBool/getDuration helper pattern, plus
// an optional YAML policy file carrying ACL and filter rules too long to
// live comfortably in environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envListenAddr           = "GATEWAYD_LISTEN_ADDR"
	envIdleTimeout          = "GATEWAYD_IDLE_TIMEOUT"
	envDialTimeout          = "GATEWAYD_DIAL_TIMEOUT"
	envUpstreamHost         = "GATEWAYD_UPSTREAM_HOST"
	envUpstreamPort         = "GATEWAYD_UPSTREAM_PORT"
	envTunnelHost           = "GATEWAYD_TUNNEL_HOST"
	envTunnelPort           = "GATEWAYD_TUNNEL_PORT"
	envStathost             = "GATEWAYD_STATHOST"
	envFilterEnabled        = "GATEWAYD_FILTER_ENABLED"
	envMyDomain             = "GATEWAYD_MY_DOMAIN"
	envHostname             = "GATEWAYD_HOSTNAME"
	envLogLevel             = "GATEWAYD_LOG_LEVEL"
	envGracefulShutdown     = "GATEWAYD_GRACEFUL_SHUTDOWN"
	envPolicyFile           = "GATEWAYD_POLICY_FILE"
	envRateLimitBytesPerSec = "GATEWAYD_RATE_LIMIT_BYTES_PER_SEC"

	defaultListenAddr         = "0.0.0.0:8888"
	defaultIdleTimeout        = 120 * time.Second
	defaultDialTimeout        = 10 * time.Second
	defaultLogLevel           = "info"
	defaultGracefulShutdown   = 10 * time.Second
)

// Policy holds the ACL/filter/anonymity rules that are more naturally
// expressed as a file than a flat environment variable: CIDR lists, domain
// patterns, and the anonymous-mode header allow-list.
type Policy struct {
	ACLAllow         []string `yaml:"acl_allow"`
	ACLDeny          []string `yaml:"acl_deny"`
	FilterPatterns   []string `yaml:"filter_patterns"`
	AnonymousEnabled bool     `yaml:"anonymous_enabled"`
	AnonymousHeaders []string `yaml:"anonymous_headers"`
}

// Config captures runtime settings for gatewayd, covering the configuration
// surface the request pipeline consults: listen address, idle/dial timeouts,
// optional upstream proxy and tunnel-mode targets, the stathost sentinel,
// filter enablement, X-Tinyproxy emission (gated by MyDomain), logging, and
// graceful shutdown.
type Config struct {
	ListenAddr  string
	IdleTimeout time.Duration
	DialTimeout time.Duration

	UpstreamHost string
	UpstreamPort uint16

	TunnelHost string
	TunnelPort uint16

	Stathost      string
	FilterEnabled bool
	MyDomain      string
	Hostname      string

	LogLevel                string
	GracefulShutdownTimeout time.Duration

	RateLimitBytesPerSec int

	Policy Policy
}

// Load reads configuration from environment variables and, if
// GATEWAYD_POLICY_FILE names a readable file, merges in its YAML policy.
func Load() (Config, error) {
	hostname, _ := os.Hostname()

	cfg := Config{
		ListenAddr:              getString(envListenAddr, defaultListenAddr),
		IdleTimeout:             getDuration(envIdleTimeout, defaultIdleTimeout),
		DialTimeout:             getDuration(envDialTimeout, defaultDialTimeout),
		UpstreamHost:            getString(envUpstreamHost, ""),
		UpstreamPort:            getUint16(envUpstreamPort, 0),
		TunnelHost:              getString(envTunnelHost, ""),
		TunnelPort:              getUint16(envTunnelPort, 0),
		Stathost:                getString(envStathost, ""),
		FilterEnabled:           getBool(envFilterEnabled, false),
		MyDomain:                getString(envMyDomain, ""),
		Hostname:                getString(envHostname, hostname),
		LogLevel:                strings.ToLower(getString(envLogLevel, defaultLogLevel)),
		GracefulShutdownTimeout: getDuration(envGracefulShutdown, defaultGracefulShutdown),
		RateLimitBytesPerSec:    getInt(envRateLimitBytesPerSec, 0),
	}

	if path := getString(envPolicyFile, ""); path != "" {
		policy, err := loadPolicy(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: loading policy file %s: %w", path, err)
		}
		cfg.Policy = policy
	}

	return cfg, nil
}

func loadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, err
	}
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("parsing yaml: %w", err)
	}
	return policy, nil
}

func getString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getUint16(key string, fallback uint16) uint16 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseUint(val, 10, 16)
	if err != nil {
		return fallback
	}
	return uint16(parsed)
}

func getInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

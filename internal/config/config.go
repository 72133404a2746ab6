package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAPIURL       = "https://reunite.adiavi.com/api"
	DefaultPollInterval = 3 * time.Second
	DefaultCloseDelay   = 1500 * time.Millisecond
)

// Config holds runtime configuration read from REUNITE_* environment variables.
type Config struct {
	Port          string
	APIURL        string
	AssetURL      string // prefix for photo and QR image paths
	DBPath        string
	SessionSecret string
	LogLevel      string
	LogFormat     string
	PollInterval  time.Duration
	CloseDelay    time.Duration
	APITimeout    time.Duration // 0 means no client-side timeout
	SecureCookies bool

	// TrustedProxies are the peers whose X-Forwarded-For is believed.
	TrustedProxies []netip.Prefix
}

// Load reads the environment. Unset values fall back to defaults; malformed
// values are an error.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:          getenv("REUNITE_PORT"),
		APIURL:        strings.TrimRight(getenv("REUNITE_API_URL"), "/"),
		AssetURL:      strings.TrimRight(getenv("REUNITE_ASSET_URL"), "/"),
		DBPath:        getenv("REUNITE_DB_PATH"),
		SessionSecret: getenv("REUNITE_SESSION_SECRET"),
		LogLevel:      getenv("REUNITE_LOG_LEVEL"),
		LogFormat:     strings.ToLower(getenv("REUNITE_LOG_FORMAT")),
		PollInterval:  DefaultPollInterval,
		CloseDelay:    DefaultCloseDelay,
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if n, err := strconv.Atoi(cfg.Port); err != nil || n < 1 || n > 65535 {
		return Config{}, fmt.Errorf("REUNITE_PORT: invalid port %q", cfg.Port)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.AssetURL == "" {
		cfg.AssetURL = strings.TrimSuffix(cfg.APIURL, "/api")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "reunite.db"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("REUNITE_LOG_FORMAT: must be text or json, got %q", cfg.LogFormat)
	}

	var err error
	if cfg.PollInterval, err = duration(getenv, "REUNITE_POLL_INTERVAL", DefaultPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.CloseDelay, err = duration(getenv, "REUNITE_CLOSE_DELAY", DefaultCloseDelay); err != nil {
		return Config{}, err
	}
	if cfg.APITimeout, err = duration(getenv, "REUNITE_API_TIMEOUT", 0); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("REUNITE_POLL_INTERVAL: must be positive")
	}

	if v := getenv("REUNITE_SECURE_COOKIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("REUNITE_SECURE_COOKIES: %w", err)
		}
		cfg.SecureCookies = b
	}

	if cfg.TrustedProxies, err = prefixes(getenv("REUNITE_TRUSTED_PROXIES")); err != nil {
		return Config{}, fmt.Errorf("REUNITE_TRUSTED_PROXIES: %w", err)
	}

	return cfg, nil
}

// prefixes parses a comma-separated list of CIDRs or single addresses.
func prefixes(v string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.Contains(f, "/") {
			p, err := netip.ParsePrefix(f)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(f)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", key)
	}
	return d, nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"
)

type Config struct {
	Mode        string        `mapstructure:"mode"`
	Port        int           `mapstructure:"port"`
	AllowOrigin string        `mapstructure:"allow_origin"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	ReadLimit   int64         `mapstructure:"read_limit"`
	EventRate   int           `mapstructure:"event_rate"`
	ICEServers  string        `mapstructure:"ice_servers"`

	// Derived from allow_origin.
	Origins     []string
	Credentials bool
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 5001)
	v.SetDefault("allow_origin", `"*"`)
	v.SetDefault("cache_ttl", "12h")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("event_rate", 120)
	v.SetDefault("ice_servers", "stun:stun.l.google.com:19302")

	v.AutomaticEnv()
	for _, key := range []string{"mode", "port", "allow_origin", "cache_ttl", "read_limit", "event_rate", "ice_servers"} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	origins, err := parseAllowOrigin(cfg.AllowOrigin)
	if err != nil {
		return nil, fmt.Errorf("failed to parse allow_origin: %w", err)
	}
	cfg.Origins = origins
	// Credentialed cross-origin requests only make sense against an explicit
	// allowlist, never against the wildcard default.
	cfg.Credentials = os.Getenv("ALLOW_ORIGIN") != ""

	return &cfg, nil
}

// parseAllowOrigin decodes the JSON-encoded allowlist: either a single
// string (possibly "*") or an array of origins.
func parseAllowOrigin(raw string) ([]string, error) {
	var single string
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal([]byte(raw), &many); err != nil {
		return nil, err
	}
	return many, nil
}

// ICEServerList exposes the configured STUN/TURN urls in the shape clients
// feed to RTCPeerConnection.
func (c *Config) ICEServerList() []webrtc.ICEServer {
	urls := make([]string, 0, 4)
	for _, u := range strings.Split(c.ICEServers, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: urls}}
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval         = 10 * time.Second
	DefaultProbeTimeout         = 5 * time.Second
	DefaultListen               = ":7070"
	DefaultAnnounceMode         = "log"
	DefaultConnectivityCheckURL = "http://clients3.google.com/generate_204"
)

// Config is the top-level configuration for one grid member.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	// Name is this node's grid name. It must match the entry other
	// members carry for this host in their peer lists.
	Name string `yaml:"name"`

	// SecretKey is the shared grid token, stored literally.
	// Prefer SecretKeyEnv outside development setups.
	SecretKey string `yaml:"secret_key"`

	// SecretKeyEnv is the name of the environment variable holding the
	// shared grid token. When set it takes precedence over SecretKey.
	SecretKeyEnv string `yaml:"secret_key_env"`

	// PollInterval controls how often every watched peer is probed.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ProbeTimeout bounds each outbound peer call. It must be strictly
	// shorter than PollInterval so one cycle's probes cannot overrun the
	// next cycle.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// ConnectivityCheckURL is fetched before each poll cycle; if the fetch
	// fails the whole cycle is skipped, so a node with a dead uplink does
	// not condemn the rest of the grid. Empty disables the check.
	ConnectivityCheckURL string `yaml:"connectivity_check_url"`

	// Server holds the listening side.
	Server ServerConfig `yaml:"server"`

	// Client holds dial options for outbound peer calls.
	Client ClientConfig `yaml:"client"`

	// Announce configures the notification channel used when this node
	// wins the announcement election.
	Announce AnnounceConfig `yaml:"announce"`

	// Journal configures the on-disk transition journal.
	Journal JournalConfig `yaml:"journal"`

	// Peers is the full grid membership, this node included. The entry
	// matching Name is never polled.
	Peers []PeerConfig `yaml:"peers"`
}

// Secret returns the shared grid token resolved from the environment,
// falling back to the literal secret_key value.
func (c *Config) Secret() string {
	if c.SecretKeyEnv == "" {
		return c.SecretKey
	}
	return os.Getenv(c.SecretKeyEnv)
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Listen is the host:port the API listens on.
	Listen string `yaml:"listen"`

	// TLS enables HTTPS when both files are set.
	TLS ServerTLSConfig `yaml:"tls"`
}

// ServerTLSConfig holds the server certificate pair.
type ServerTLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Enabled reports whether the listener should serve TLS.
func (t ServerTLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

// ClientConfig holds dial options for outbound peer calls.
type ClientConfig struct {
	TLS ClientTLSConfig `yaml:"tls"`
}

// ClientTLSConfig holds trust options for grids running private CAs.
type ClientTLSConfig struct {
	// CAFile is a PEM bundle appended to the system roots.
	CAFile string `yaml:"ca_file"`

	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for self-signed grids in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// AnnounceConfig selects and configures the notification channel.
type AnnounceConfig struct {
	// Mode is one of: telegram | slack | webhook | log.
	Mode string `yaml:"mode"`

	// Telegram fields — used when Mode == "telegram".
	Telegram TelegramConfig `yaml:"telegram"`

	// Slack fields — used when Mode == "slack".
	Slack WebhookTarget `yaml:"slack"`

	// Webhook fields — used when Mode == "webhook".
	Webhook WebhookTarget `yaml:"webhook"`
}

// TelegramConfig holds Bot API delivery settings.
type TelegramConfig struct {
	// TokenEnv is the name of the environment variable holding the bot token.
	TokenEnv string `yaml:"token_env"`

	// ChatID is the chat the announcements are sent to.
	ChatID int64 `yaml:"chat_id"`
}

// Token returns the bot token resolved from the environment.
func (t TelegramConfig) Token() string {
	if t.TokenEnv == "" {
		return ""
	}
	return os.Getenv(t.TokenEnv)
}

// WebhookTarget defines one webhook delivery target.
type WebhookTarget struct {
	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookTarget) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// JournalConfig configures transition-event persistence.
type JournalConfig struct {
	// Path is the LevelDB directory for the journal. Empty disables it.
	Path string `yaml:"path"`
}

// PeerConfig describes one grid member.
type PeerConfig struct {
	// Name is the member's unique grid name.
	Name string `yaml:"name"`

	// Address is the member's base URL, e.g. https://alpha.example.org:7070.
	Address string `yaml:"address"`

	// NotifyHandle is an optional handle mentioned in announcements
	// about this member, e.g. a Telegram @name.
	NotifyHandle string `yaml:"notify_handle"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		PollInterval:         DefaultPollInterval,
		ProbeTimeout:         DefaultProbeTimeout,
		ConnectivityCheckURL: DefaultConnectivityCheckURL,
		Server:               ServerConfig{Listen: DefaultListen},
		Announce:             AnnounceConfig{Mode: DefaultAnnounceMode},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Secret() == "" {
		return fmt.Errorf("secret_key (or the secret_key_env variable) must resolve to a non-empty value")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if cfg.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}
	if cfg.ProbeTimeout >= cfg.PollInterval {
		return fmt.Errorf("probe_timeout must be shorter than poll_interval")
	}
	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if (cfg.Server.TLS.CertFile == "") != (cfg.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls: cert_file and key_file must be set together")
	}
	switch cfg.Announce.Mode {
	case "telegram":
		if cfg.Announce.Telegram.TokenEnv == "" {
			return fmt.Errorf("announce.telegram.token_env is required for telegram mode")
		}
		if cfg.Announce.Telegram.ChatID == 0 {
			return fmt.Errorf("announce.telegram.chat_id is required for telegram mode")
		}
	case "slack":
		if cfg.Announce.Slack.URLEnv == "" {
			return fmt.Errorf("announce.slack.url_env is required for slack mode")
		}
	case "webhook":
		if cfg.Announce.Webhook.URLEnv == "" {
			return fmt.Errorf("announce.webhook.url_env is required for webhook mode")
		}
	case "log", "":
	default:
		return fmt.Errorf("announce: unknown mode %q", cfg.Announce.Mode)
	}
	seen := make(map[string]bool, len(cfg.Peers))
	for i, p := range cfg.Peers {
		if p.Name == "" {
			return fmt.Errorf("peers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("peers[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		if p.Address == "" {
			return fmt.Errorf("peers[%d] %q: address is required", i, p.Name)
		}
		u, err := url.Parse(p.Address)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("peers[%d] %q: address must be an absolute http(s) URL", i, p.Name)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	FileName = "dispatch.yml"

	DefaultAddr  = "127.0.0.1:8080"
	DefaultRoute = "/dispatch"
)

// Config models dispatch.yml.
type Config struct {
	Server struct {
		Addr        string `yaml:"addr"`
		BasePath    string `yaml:"base_path"`
		JWTSecret   string `yaml:"jwt_secret"`
		InsecureDev bool   `yaml:"insecure_dev"`
	} `yaml:"server"`
	Console struct {
		Route         string `yaml:"route"`
		ActiveOfficer string `yaml:"active_officer"`
		ActiveDeputy  string `yaml:"active_deputy"`
		Stream        bool   `yaml:"stream"`
	} `yaml:"console"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig describes an outbound receiver of dispatch events.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with cad init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path must start with /")
	}
	if !strings.HasPrefix(c.Console.Route, "/") {
		return fmt.Errorf("console.route must start with /")
	}
	if c.Logging.Level != "" {
		if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// applyDefaults fills fields the YAML left empty.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Console.Route == "" {
		c.Console.Route = DefaultRoute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	cfg.applyDefaults()
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: ""
  # jwt_secret: change-me
  insecure_dev: false

console:
  # /dispatch, /officer or /ems-fd; decides which active unit assign/unassign use.
  route: /dispatch
  # unit id or callsign
  active_officer: ""
  active_deputy: ""
  stream: true

logging:
  level: info
  format: text

webhooks: []
`

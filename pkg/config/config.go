package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig                 `json:"app" yaml:"app"`
	Gateways   map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Providers  map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Memory     MemoryConfig              `json:"memory" yaml:"memory"`
	Engine     EngineConfig              `json:"engine" yaml:"engine"`
	Planner    PlannerConfig             `json:"planner" yaml:"planner"`
	Workers    map[string]WorkerConfig   `json:"workers" yaml:"workers"`
	Governance GovernanceConfig          `json:"governance" yaml:"governance"`
	Logging    LoggingConfig             `json:"logging" yaml:"logging"`
}

type AppConfig struct {
	Name      string `json:"name" yaml:"name"`
	Workspace string `json:"workspace" yaml:"workspace"`
	// Prompts is a directory of <worker>.md system prompts overriding the built-ins.
	Prompts string `json:"prompts,omitempty" yaml:"prompts,omitempty"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

// EngineConfig controls how plans are executed.
type EngineConfig struct {
	FailurePolicy string   `json:"failure_policy" yaml:"failure_policy"` // best_effort | fail_fast
	MaxParallel   int      `json:"max_parallel" yaml:"max_parallel"`
	StepTimeout   Duration `json:"step_timeout" yaml:"step_timeout"`
	RunTimeout    Duration `json:"run_timeout" yaml:"run_timeout"`
}

// PlannerConfig selects how requests become plans.
type PlannerConfig struct {
	Mode     string `json:"mode" yaml:"mode"` // llm | rules | file
	PlanFile string `json:"plan_file,omitempty" yaml:"plan_file,omitempty"`
	// History is how many past messages the LLM planner sees.
	History int    `json:"history" yaml:"history"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
}

// WorkerConfig tunes the model behind one worker kind.
type WorkerConfig struct {
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	// Summarize shortens long outputs before they reach dependent steps.
	Summarize bool `json:"summarize,omitempty" yaml:"summarize,omitempty"`
	Disabled  bool `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

type GovernanceConfig struct {
	DenyWorkers  []string `json:"deny_workers,omitempty" yaml:"deny_workers,omitempty"`
	DenyPatterns []string `json:"deny_patterns,omitempty" yaml:"deny_patterns,omitempty"`
}

type LoggingConfig struct {
	Level     string `json:"level" yaml:"level"`
	Format    string `json:"format" yaml:"format"`
	TracePath string `json:"trace_path" yaml:"trace_path"`
}

// Duration is a time.Duration written as "30s" or "2m" in config files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var secs float64
		if nerr := json.Unmarshal(b, &secs); nerr != nil {
			return fmt.Errorf("invalid duration %s", string(b))
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// DefaultWorkers holds per-worker model settings used when the file omits them.
var DefaultWorkers = map[string]WorkerConfig{
	"math":       {Model: "gpt-4o-mini", Temperature: 0, MaxTokens: 300},
	"string":     {Model: "gpt-4o-mini", Temperature: 0, MaxTokens: 300},
	"weather":    {Model: "gpt-4o-mini", Temperature: 0, MaxTokens: 300},
	"web_search": {Model: "gpt-4o", Temperature: 0.3, MaxTokens: 1000, Summarize: true},
	"code":       {Model: "gpt-4o", Temperature: 0.2, MaxTokens: 1500},
	"writer":     {Model: "gpt-4o", Temperature: 0.7, MaxTokens: 1500},
	"editor":     {Model: "gpt-4o", Temperature: 0.5, MaxTokens: 1500},
}

// LoadConfig reads a JSON or YAML (by extension) config file, loads a sibling .env
// file when present, resolves environment references and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes config bytes. ext selects the format: ".yaml"/".yml" or JSON.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.resolveEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveEnv expands "env:NAME" and $VAR references in secrets and falls back to
// <NAME>_API_KEY for providers without a key.
func (c *Config) resolveEnv() {
	for name, p := range c.Providers {
		p.APIKey = expandSecret(p.APIKey)
		if p.APIKey == "" {
			p.APIKey = os.Getenv(strings.ToUpper(name) + "_API_KEY")
		}
		c.Providers[name] = p
	}
	for name, g := range c.Gateways {
		g.Token = expandSecret(g.Token)
		c.Gateways[name] = g
	}
}

func expandSecret(v string) string {
	if name, ok := strings.CutPrefix(v, "env:"); ok {
		return os.Getenv(strings.TrimSpace(name))
	}
	return os.ExpandEnv(v)
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "switchboard"
	}
	if c.App.Workspace == "" {
		c.App.Workspace = "workspace"
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "sqlite"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "switchboard.db"
	}
	if c.Engine.FailurePolicy == "" {
		c.Engine.FailurePolicy = "best_effort"
	}
	if c.Engine.StepTimeout == 0 {
		c.Engine.StepTimeout = Duration(2 * time.Minute)
	}
	if c.Engine.RunTimeout == 0 {
		c.Engine.RunTimeout = Duration(10 * time.Minute)
	}
	if c.Planner.Mode == "" {
		c.Planner.Mode = "llm"
	}
	if c.Planner.History == 0 {
		c.Planner.History = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.TracePath == "" {
		c.Logging.TracePath = filepath.Join("logs", "trace.jsonl")
	}

	// The default model names are OpenAI's; other providers keep their own model.
	provider, _ := c.GetDefaultProvider()
	openAI := provider == "" || provider == "openai"

	if c.Workers == nil {
		c.Workers = map[string]WorkerConfig{}
	}
	for name, def := range DefaultWorkers {
		if !openAI {
			def.Model = ""
		}
		w, ok := c.Workers[name]
		if !ok {
			c.Workers[name] = def
			continue
		}
		if w.Model == "" {
			w.Model = def.Model
		}
		if w.MaxTokens == 0 {
			w.MaxTokens = def.MaxTokens
		}
		c.Workers[name] = w
	}
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	switch c.Engine.FailurePolicy {
	case "best_effort", "best-effort", "fail_fast", "fail-fast":
	default:
		errs = append(errs, fmt.Errorf("engine.failure_policy: unknown value %q", c.Engine.FailurePolicy))
	}
	if c.Engine.MaxParallel < 0 {
		errs = append(errs, fmt.Errorf("engine.max_parallel must not be negative"))
	}
	switch c.Planner.Mode {
	case "llm", "rules":
	case "file":
		if c.Planner.PlanFile == "" {
			errs = append(errs, fmt.Errorf("planner.plan_file is required when planner.mode is file"))
		}
	default:
		errs = append(errs, fmt.Errorf("planner.mode: unknown value %q", c.Planner.Mode))
	}
	if c.Memory.Type != "sqlite" {
		errs = append(errs, fmt.Errorf("memory.type: only sqlite is supported, got %q", c.Memory.Type))
	}
	return errors.Join(errs...)
}

// GetDefaultProvider returns the first enabled provider, by name order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	return c.gateway("telegram")
}

// GetDiscordConfig returns discord config if enabled
func (c *Config) GetDiscordConfig() (GatewayConfig, bool) {
	return c.gateway("discord")
}

func (c *Config) gateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled {
		return g, true
	}
	return GatewayConfig{}, false
}

// Worker returns the settings for a worker kind.
func (c *Config) Worker(name string) WorkerConfig {
	if w, ok := c.Workers[name]; ok {
		return w
	}
	return DefaultWorkers[name]
}

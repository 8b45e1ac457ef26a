package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFile is the config file looked up in the working directory.
	DefaultFile = "warren.yml"

	// MaxSessionNameLength is the maximum length of a session name (DNS-compatible).
	MaxSessionNameLength = 63
)

// SessionNamePattern matches valid session names: lowercase alphanumeric,
// hyphens allowed but not at the start or end.
var SessionNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// WarrenConfig represents the top-level warren.yml configuration
type WarrenConfig struct {
	Version    string            `yaml:"version"`
	Session    string            `yaml:"session"`
	Problem    ProblemConfig     `yaml:"problem"`
	API        *APIConfig        `yaml:"api,omitempty"`
	Explore    *ExploreConfig    `yaml:"explore,omitempty"`
	Hypothesis *HypothesisConfig `yaml:"hypothesis,omitempty"`
	Trace      *TraceConfig      `yaml:"trace,omitempty"`
	Health     *HealthConfig     `yaml:"health,omitempty"`
}

// ProblemConfig names the maze to solve
type ProblemConfig struct {
	Name  string `yaml:"name"`
	Rooms int    `yaml:"rooms"`           // Known room count (required)
	File  string `yaml:"file,omitempty"` // Local maze file; solves offline against the simulator

	// Simulate solves offline against the built-in problem called Name.
	Simulate bool `yaml:"simulate,omitempty"`
}

// Offline reports whether the problem is solved against the local simulator.
func (p ProblemConfig) Offline() bool {
	return p.File != "" || p.Simulate
}

// APIConfig points at the contest server
type APIConfig struct {
	URL            string `yaml:"url"`
	TeamID         string `yaml:"team_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // Default: 30
}

// ExploreConfig bounds the explore loop and shapes plan batches
type ExploreConfig struct {
	MaxPlanLength    int   `yaml:"max_plan_length,omitempty"`     // Default: 18 x rooms
	MaxPlansPerBatch int   `yaml:"max_plans_per_batch,omitempty"` // Default: 16
	MaxIterations    int   `yaml:"max_iterations,omitempty"`      // Default: 100
	QueryBudget      int   `yaml:"query_budget,omitempty"`        // 0 = unlimited
	TailLength       int   `yaml:"tail_length,omitempty"`         // Default: 2
	RandomWalks      int   `yaml:"random_walks,omitempty"`        // Default: 1
	Workers          int   `yaml:"workers,omitempty"`             // Default: 4
	Seed             int64 `yaml:"seed,omitempty"`
}

// HypothesisConfig tunes the graph builder
type HypothesisConfig struct {
	ConfirmDepth int `yaml:"confirm_depth,omitempty"` // Default: 2
	MaxRollbacks int `yaml:"max_rollbacks,omitempty"` // Default: 16
	MaxPaths     int `yaml:"max_paths,omitempty"`     // Default: 4
}

// TraceConfig selects the trace store backend
type TraceConfig struct {
	Backend  string `yaml:"backend"`             // "memory" or "redis"
	RedisURL string `yaml:"redis_url,omitempty"` // Required for the redis backend
}

// HealthConfig enables the health and metrics endpoint
type HealthConfig struct {
	Addr string `yaml:"addr"` // e.g. ":8080"; empty disables the server
}

// Validate performs strict validation on the configuration and applies
// defaults for omitted sections
func (c *WarrenConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if err := ValidateSessionName(c.Session); err != nil {
		return err
	}

	if c.Problem.Name == "" {
		return fmt.Errorf("problem.name is required")
	}
	if c.Problem.Rooms < 1 {
		return fmt.Errorf("problem.rooms must be >= 1, got %d", c.Problem.Rooms)
	}

	if !c.Problem.Offline() {
		if c.API == nil || c.API.URL == "" {
			return fmt.Errorf("api.url is required unless problem.file or problem.simulate is set")
		}
		if c.API.TeamID == "" {
			return fmt.Errorf("api.team_id is required unless problem.file or problem.simulate is set")
		}
	}
	if c.API != nil {
		if c.API.TimeoutSeconds == 0 {
			c.API.TimeoutSeconds = 30
		}
		if c.API.TimeoutSeconds < 0 {
			return fmt.Errorf("api.timeout_seconds must be >= 0, got %d", c.API.TimeoutSeconds)
		}
	}

	if c.Explore == nil {
		c.Explore = &ExploreConfig{}
	}
	if err := c.Explore.validate(c.Problem.Rooms); err != nil {
		return err
	}

	if c.Hypothesis == nil {
		c.Hypothesis = &HypothesisConfig{}
	}
	if err := c.Hypothesis.validate(); err != nil {
		return err
	}

	if c.Trace == nil {
		c.Trace = &TraceConfig{Backend: "memory"}
	}
	switch c.Trace.Backend {
	case "", "memory":
		c.Trace.Backend = "memory"
	case "redis":
		if c.Trace.RedisURL == "" {
			return fmt.Errorf("trace.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid trace.backend: %s (must be 'memory' or 'redis')", c.Trace.Backend)
	}

	return nil
}

func (e *ExploreConfig) validate(rooms int) error {
	limit := 18 * rooms
	if e.MaxPlanLength == 0 {
		e.MaxPlanLength = limit
	}
	if e.MaxPlanLength < 1 || e.MaxPlanLength > limit {
		return fmt.Errorf("explore.max_plan_length must be between 1 and %d (18 x rooms), got %d", limit, e.MaxPlanLength)
	}

	if e.MaxPlansPerBatch == 0 {
		e.MaxPlansPerBatch = 16
	}
	if e.MaxIterations == 0 {
		e.MaxIterations = 100
	}
	if e.TailLength == 0 {
		e.TailLength = 2
	}
	if e.RandomWalks == 0 {
		e.RandomWalks = 1
	}
	if e.Workers == 0 {
		e.Workers = 4
	}

	if e.MaxPlansPerBatch < 1 {
		return fmt.Errorf("explore.max_plans_per_batch must be >= 1, got %d", e.MaxPlansPerBatch)
	}
	if e.MaxIterations < 1 {
		return fmt.Errorf("explore.max_iterations must be >= 1, got %d", e.MaxIterations)
	}
	if e.QueryBudget < 0 {
		return fmt.Errorf("explore.query_budget must be >= 0 (0 = unlimited), got %d", e.QueryBudget)
	}
	if e.TailLength < 1 || e.RandomWalks < 1 || e.Workers < 1 {
		return fmt.Errorf("explore.tail_length, random_walks and workers must be >= 1")
	}
	return nil
}

func (h *HypothesisConfig) validate() error {
	if h.ConfirmDepth == 0 {
		h.ConfirmDepth = 2
	}
	if h.MaxRollbacks == 0 {
		h.MaxRollbacks = 16
	}
	if h.MaxPaths == 0 {
		h.MaxPaths = 4
	}
	if h.ConfirmDepth < 1 || h.MaxRollbacks < 1 || h.MaxPaths < 1 {
		return fmt.Errorf("hypothesis.confirm_depth, max_rollbacks and max_paths must be >= 1")
	}
	return nil
}

// ValidateSessionName checks if a session name is valid according to DNS naming rules.
func ValidateSessionName(name string) error {
	if name == "" {
		return fmt.Errorf("session name cannot be empty")
	}

	if len(name) > MaxSessionNameLength {
		return fmt.Errorf("session name too long: %d characters (max: %d)", len(name), MaxSessionNameLength)
	}

	if !SessionNamePattern.MatchString(name) {
		return fmt.Errorf("invalid session name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}

// ApplyEnv overrides settings from the environment: WARREN_API_URL,
// WARREN_TEAM_ID, WARREN_QUERY_BUDGET and REDIS_URL. REDIS_URL also switches
// the trace backend to redis.
func (c *WarrenConfig) ApplyEnv() error {
	if v := os.Getenv("WARREN_API_URL"); v != "" {
		if c.API == nil {
			c.API = &APIConfig{}
		}
		c.API.URL = v
	}
	if v := os.Getenv("WARREN_TEAM_ID"); v != "" {
		if c.API == nil {
			c.API = &APIConfig{}
		}
		c.API.TeamID = v
	}
	if v := os.Getenv("WARREN_QUERY_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WARREN_QUERY_BUDGET %q: %w", v, err)
		}
		if c.Explore == nil {
			c.Explore = &ExploreConfig{}
		}
		c.Explore.QueryBudget = n
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Trace = &TraceConfig{Backend: "redis", RedisURL: v}
	}
	return nil
}

// Load reads warren.yml from the specified path, applies environment
// overrides and validates the result
func Load(path string) (*WarrenConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config WarrenConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Package config resolves server settings from defaults, an optional
// vyuha-scene.yaml file, VYUHA_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vyuha/vyuha-scene/internal/interaction"
	"github.com/vyuha/vyuha-scene/internal/layout"
	"github.com/vyuha/vyuha-scene/internal/render"
	"github.com/vyuha/vyuha-scene/internal/source"
)

// Config is the fully resolved server configuration.
type Config struct {
	Port      int    `koanf:"port"`
	DBPath    string `koanf:"db_path"`
	LogLevel  string `koanf:"log_level"`
	NATSURL   string `koanf:"nats_url"`
	ReplayDir string `koanf:"replay_dir"`

	// RateLimit and RateBurst bound HTTP requests per second.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	Scene  SceneConfig     `koanf:"scene"`
	Layout layout.Params   `koanf:"layout"`
	S3     source.S3Config `koanf:"s3"`
}

// SceneConfig sizes each interactive view.
type SceneConfig struct {
	FrameRate    int           `koanf:"frame_rate"`
	MaxNodes     int           `koanf:"max_nodes"`
	MaxRings     int           `koanf:"max_rings"`
	HitRadius    float64       `koanf:"hit_radius"`
	LayoutBudget time.Duration `koanf:"layout_budget"`
	// PointerRate and PointerBurst bound pointer events per view socket.
	PointerRate  float64 `koanf:"pointer_rate"`
	PointerBurst int     `koanf:"pointer_burst"`
}

// defaults is loaded first; every key here can be overridden.
func defaults() map[string]any {
	lp := layout.DefaultParams()
	return map[string]any{
		"port":       8080,
		"db_path":    "./vyuha-scene.db",
		"log_level":  "info",
		"nats_url":   "",
		"replay_dir": "",
		"rate_limit": 100.0,
		"rate_burst": 200,

		"scene.frame_rate":    30,
		"scene.max_nodes":     interaction.DefaultMaxNodes,
		"scene.max_rings":     render.DefaultMaxRings,
		"scene.hit_radius":    interaction.DefaultHitRadius,
		"scene.layout_budget": "2s",
		"scene.pointer_rate":  120.0,
		"scene.pointer_burst": 240,

		"layout.iterations":  lp.Iterations,
		"layout.repulsion":   lp.Repulsion,
		"layout.attraction":  lp.Attraction,
		"layout.damping":     lp.Damping,
		"layout.epsilon":     lp.Epsilon,
		"layout.init_spread": lp.InitSpread,
		"layout.seed":        0,
		"layout.radius":      lp.Radius,

		"s3.bucket":   "",
		"s3.prefix":   "",
		"s3.region":   "us-east-1",
		"s3.endpoint": "",
	}
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if !contains(logLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level %q must be one of %s", c.LogLevel, strings.Join(logLevels, ", ")))
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		errs = append(errs, errors.New("rate_limit and rate_burst must be positive"))
	}

	s := c.Scene
	if s.FrameRate < 1 || s.FrameRate > 240 {
		errs = append(errs, fmt.Errorf("scene.frame_rate %d must be in [1, 240]", s.FrameRate))
	}
	if s.MaxNodes <= 0 {
		errs = append(errs, errors.New("scene.max_nodes must be positive"))
	}
	if s.MaxRings <= 0 {
		errs = append(errs, errors.New("scene.max_rings must be positive"))
	}
	if s.HitRadius <= 0 {
		errs = append(errs, errors.New("scene.hit_radius must be positive"))
	}
	if s.LayoutBudget <= 0 {
		errs = append(errs, errors.New("scene.layout_budget must be positive"))
	}
	if s.PointerRate <= 0 || s.PointerBurst <= 0 {
		errs = append(errs, errors.New("scene.pointer_rate and scene.pointer_burst must be positive"))
	}

	l := c.Layout
	if l.Iterations <= 0 {
		errs = append(errs, errors.New("layout.iterations must be positive"))
	}
	if l.Damping <= 0 || l.Damping > 1 {
		errs = append(errs, fmt.Errorf("layout.damping %g must be in (0, 1]", l.Damping))
	}
	if l.Repulsion <= 0 || l.Attraction <= 0 || l.Epsilon <= 0 {
		errs = append(errs, errors.New("layout.repulsion, layout.attraction and layout.epsilon must be positive"))
	}

	if c.S3.Endpoint != "" && c.S3.Bucket == "" {
		errs = append(errs, errors.New("s3.bucket is required when s3.endpoint is set"))
	}
	return errors.Join(errs...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

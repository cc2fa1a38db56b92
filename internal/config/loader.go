package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "vyuha-scene.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "vyuha-scene.yml"

// EnvPrefix prefixes every environment override. A double underscore
// separates nested keys: VYUHA_SCENE__MAX_NODES sets scene.max_nodes.
const EnvPrefix = "VYUHA_"

// flagKeys maps flag names that do not follow the key naming directly.
var flagKeys = map[string]string{
	"max-nodes":     "scene.max_nodes",
	"max-rings":     "scene.max_rings",
	"frame-rate":    "scene.frame_rate",
	"layout-budget": "scene.layout_budget",
	"s3-bucket":     "s3.bucket",
	"s3-prefix":     "s3.prefix",
	"s3-region":     "s3.region",
	"s3-endpoint":   "s3.endpoint",
	"seed":          "layout.seed",
	"iterations":    "layout.iterations",
}

// Loaded is a resolved config plus the file it came from, if any.
type Loaded struct {
	*Config
	File string
}

// findConfigFile finds the config file to use.
// Priority: explicit path > vyuha-scene.yaml > vyuha-scene.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load resolves the configuration. cfgFile may be empty; flags may be nil.
// Only flags the user explicitly set override lower layers.
func Load(cfgFile string, flags *pflag.FlagSet) (*Loaded, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", used, err)
		}
	}

	// 3. Environment: VYUHA_SCENE__MAX_NODES -> scene.max_nodes
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(flags, f)
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("config: load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &Loaded{Config: &cfg, File: used}, nil
}

// BindFlags registers the flags Load understands on fs.
func BindFlags(fs *pflag.FlagSet) {
	d := defaults()
	fs.String("config", "", "Path to config file (default: ./"+ConfigFileName+" if present)")
	fs.Int("port", d["port"].(int), "HTTP server port")
	fs.String("db-path", d["db_path"].(string), "Path to SQLite database file")
	fs.String("log-level", d["log_level"].(string), "Log level (debug|info|warn|error)")
	fs.String("nats-url", "", "NATS URL for outbound scene events (empty = disabled)")
	fs.String("replay-dir", "", "Directory watched for temporal replay snapshots")
	fs.Int("max-nodes", d["scene.max_nodes"].(int), "Maximum pickable nodes per view")
	fs.Int("max-rings", d["scene.max_rings"].(int), "Maximum status rings per view")
	fs.Int("frame-rate", d["scene.frame_rate"].(int), "Frames per second per view")
	fs.String("s3-bucket", "", "S3 bucket holding snapshots")
	fs.String("s3-prefix", "", "Key prefix of snapshots in the bucket")
	fs.String("s3-region", d["s3.region"].(string), "AWS region for S3")
	fs.String("s3-endpoint", "", "Custom S3 endpoint (MinIO and similar)")
}

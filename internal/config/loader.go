package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is packetsentry's environment-variable namespace, the same
// convention as the teacher's OTUS_ prefix (internal/otus/config/loader.go)
// applied to packetsentry's own config surface.
const envPrefix = "PKTSENTRY"

// Load reads the YAML config file at path, overlays PKTSENTRY_-prefixed
// environment variables, and applies packetsentry's defaults for any
// field left unset. It does not call Validate — callers decide when
// cross-field validation runs (e.g. cmd/validate.go reports validation
// failures without starting anything).
func Load(path string) (*Config, error) {
	v := viper.New()

	dir := filepath.Dir(path)
	filename := filepath.Base(path)
	fileExt := filepath.Ext(filename)
	nameWithoutExt := strings.TrimSuffix(filename, fileExt)

	v.SetConfigName(nameWithoutExt)
	v.SetConfigType(strings.TrimPrefix(fileExt, "."))
	v.AddConfigPath(dir)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling %s: %w", path, err)
	}
	if cfg.Logger == nil {
		cfg.Logger = Defaults().Logger
	}
	return cfg, nil
}

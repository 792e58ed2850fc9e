// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix is the prefix environment-variable overrides must carry,
// e.g. GOSERVICE_TREE_SHUTDOWN_TIMEOUT overrides tree.shutdown_timeout.
const envPrefix = "GOSERVICE"

// Loader wraps koanf to load Config from a YAML file with
// environment-variable overrides, in that precedence order (env wins).
type Loader struct {
	mu       sync.RWMutex
	k        *koanf.Koanf
	filePath string
}

// Option configures a Loader.
type Option func(*Loader)

// WithYAMLFile sets the YAML file Load reads before defaults are
// overlaid with environment variables. An empty path, or one that
// cannot be stat'ed (such as a missing file), is skipped silently —
// defaults and env vars alone are a valid config. A file that exists
// but fails to load or parse is still an error.
func WithYAMLFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// NewLoader builds a Loader and performs its first load immediately.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{k: koanf.New(".")}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Load unmarshals the current configuration into a Config, validating
// it before returning.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	l.mu.RLock()
	k := l.k
	l.mu.RUnlock()

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Reload re-reads the YAML file and environment variables.
func (l *Loader) Reload() error { return l.reload() }

func (l *Loader) reload() error {
	newK := koanf.New(".")

	if l.filePath != "" {
		if _, err := os.Stat(l.filePath); err == nil {
			if err := newK.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
				return fmt.Errorf("config: load YAML file: %w", err)
			}
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix + "_",
		TransformFunc: func(k, v string) (string, any) {
			// k arrives with the GOSERVICE_ prefix still attached, so
			// strip it first. Then split only the known top-level section
			// name from the rest, so a multi-word leaf field like
			// shutdown_timeout survives intact: GOSERVICE_TREE_SHUTDOWN_TIMEOUT
			// becomes "tree.shutdown_timeout", not "tree.shutdown.timeout".
			k = strings.ToLower(strings.TrimPrefix(k, envPrefix+"_"))
			for _, section := range []string{"tree_", "tasks_"} {
				if strings.HasPrefix(k, section) {
					rest := strings.TrimPrefix(k, section)
					return strings.TrimSuffix(section, "_") + "." + rest, v
				}
			}
			return k, v
		},
	})
	if err := newK.Load(envProvider, nil); err != nil {
		return fmt.Errorf("config: load environment: %w", err)
	}

	l.mu.Lock()
	l.k = newK
	l.mu.Unlock()
	return nil
}

// SPDX-License-Identifier: MIT

// Package config loads the tree topology for cmd/svcdemo from a YAML
// file with environment-variable overrides. The core service/
// supervisor/roothost packages are deliberately config-free: parsing
// configuration is a concern of the program wiring them together, not
// of the engine itself.
package config

import (
	"fmt"
	"time"
)

// DefaultFilePath is where cmd/svcdemo looks for its YAML config by
// default, overridable with -config.
const DefaultFilePath = "/etc/goservice/config.yaml"

// Config is the full tree topology for the demo command: the
// failure-decay restart policy roothost applies to the root tree, and
// the cadence of the demo tree's own timer tasks.
type Config struct {
	Tree  TreeConfig  `yaml:"tree" koanf:"tree"`
	Tasks TasksConfig `yaml:"tasks" koanf:"tasks"`
}

// TreeConfig mirrors roothost.Config, expressed as plain durations
// and floats so it can round-trip through YAML/env without importing
// the suture-backed roothost package from the config layer.
type TreeConfig struct {
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
	FailureThreshold float64       `yaml:"failure_threshold" koanf:"failure_threshold"`
	FailureDecay     float64       `yaml:"failure_decay" koanf:"failure_decay"`
	FailureBackoff   time.Duration `yaml:"failure_backoff" koanf:"failure_backoff"`
}

// TasksConfig controls the cadence of the demo tree's timer tasks.
// ChildWatchInterval is loaded and validated but not read by any
// service: a parent's watch task does not poll, it blocks on each
// child's Stopped channel.
type TasksConfig struct {
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval" koanf:"heartbeat_interval"`
	ChildWatchInterval time.Duration `yaml:"child_watch_interval" koanf:"child_watch_interval"`
}

// Default returns a Config populated with conservative built-in
// defaults, used both as the base the loader starts from and as a
// fallback when no file or environment override is present.
func Default() Config {
	return Config{
		Tree: TreeConfig{
			ShutdownTimeout:  10 * time.Second,
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
		},
		Tasks: TasksConfig{
			HeartbeatInterval:  5 * time.Second,
			ChildWatchInterval: time.Second,
		},
	}
}

// Validate rejects a Config with nonsensical values before it reaches
// the services that rely on it.
func (c Config) Validate() error {
	if c.Tree.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: tree.shutdown_timeout must be positive, got %s", c.Tree.ShutdownTimeout)
	}
	if c.Tree.FailureThreshold <= 0 {
		return fmt.Errorf("config: tree.failure_threshold must be positive, got %v", c.Tree.FailureThreshold)
	}
	if c.Tree.FailureDecay <= 0 {
		return fmt.Errorf("config: tree.failure_decay must be positive, got %v", c.Tree.FailureDecay)
	}
	if c.Tasks.HeartbeatInterval <= 0 {
		return fmt.Errorf("config: tasks.heartbeat_interval must be positive, got %s", c.Tasks.HeartbeatInterval)
	}
	if c.Tasks.ChildWatchInterval <= 0 {
		return fmt.Errorf("config: tasks.child_watch_interval must be positive, got %s", c.Tasks.ChildWatchInterval)
	}
	return nil
}

// Package engineconfig loads the supervisor's own tunables — mailbox
// sizing, mailbox depths, shutdown timeouts — with viper, the way the
// teacher's internal/config package loads its GlobalConfig. This never
// governs a running task's graph: graphs are submitted through
// Supervisor.RunTask, not read from config, so reloading this config
// cannot hot-reload an in-flight task.
package engineconfig

import (
	"time"

	"github.com/spf13/viper"

	"github.com/dagflow/flowcore/internal/obslog"
)

// EngineConfig holds the process-wide knobs for the supervisor and its
// tasks.
type EngineConfig struct {
	// DefaultMailboxCapacity is the bounded capacity used for every edge's
	// channel (and the awaiter) of a task.
	DefaultMailboxCapacity int `mapstructure:"default_mailbox_capacity"`
	// SupervisorMailboxDepth is the bound on the Supervisor's own request
	// mailbox.
	SupervisorMailboxDepth int `mapstructure:"supervisor_mailbox_depth"`
	// ShutdownDrainTimeout bounds how long Shutdown waits for every
	// running task to stop before giving up on the stragglers.
	ShutdownDrainTimeout time.Duration `mapstructure:"shutdown_drain_timeout"`
	// Log configures the process logger.
	Log obslog.Config `mapstructure:"log"`
}

// Defaults returns the built-in defaults, used both as the base Load()
// merges file overrides onto and directly by callers that skip config
// files entirely (e.g. tests, cmd/flowdemo).
func Defaults() EngineConfig {
	return EngineConfig{
		DefaultMailboxCapacity: 128,
		SupervisorMailboxDepth: 32,
		ShutdownDrainTimeout:   10 * time.Second,
		Log: obslog.Config{
			Level: "info",
		},
	}
}

// Load reads EngineConfig from an optional file at path (skipped if
// empty), merged onto Defaults(). AutomaticEnv is enabled with the
// FLOWCORE prefix, but no keys are registered with viper beforehand, so
// Unmarshal does not pick up environment variables.
func Load(path string) (EngineConfig, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("FLOWCORE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/gluster-iot/iothreads/pkg/iothreads"
)

// loadConfig reads options from an optional config file and environment
// variables (IOTHREADS_ prefix), with precedence env > file > defaults,
// matching the pack's viper-based config loading convention. No
// command-line flags are bound to these options.
func loadConfig(v *viper.Viper, cfgFile string) (iothreads.Config, error) {
	def := iothreads.DefaultConfig()
	v.SetDefault("thread-count", def.ThreadCount)
	v.SetDefault("fops-per-thread-ratio", def.FopsPerThreadRatio)
	v.SetDefault("high-prio-threads", def.HighPrioThreads)
	v.SetDefault("normal-prio-threads", def.NormalPrioThreads)
	v.SetDefault("low-prio-threads", def.LowPrioThreads)
	v.SetDefault("least-prio-threads", def.LeastPrioThreads)
	v.SetDefault("enable-least-priority", def.EnableLeastPriority)
	v.SetDefault("idle-time", def.IdleTimeSeconds)
	v.SetDefault("least-rate-limit", def.LeastRateLimit)
	v.SetDefault("watchdog-secs", def.WatchdogSeconds)

	v.SetEnvPrefix("iothreads")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return iothreads.Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg iothreads.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return iothreads.Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

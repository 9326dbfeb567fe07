package config

// Package config provides a reusable loader for the engine's configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/tos-network/tos-sub005/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a core engine process. It
// mirrors the structure of the YAML files under cmd/config. Fields are
// limited to what this engine itself consumes: the wider node's P2P/RPC
// surface is configured elsewhere and is irrelevant to block application.
type Config struct {
	Chain struct {
		ID          string `mapstructure:"id" json:"id"`
		Network     string `mapstructure:"network" json:"network"`
		ChainID     uint64 `mapstructure:"chain_id" json:"chain_id"`
		GenesisFile string `mapstructure:"genesis_file" json:"genesis_file"`
	} `mapstructure:"chain" json:"chain"`

	Execution struct {
		MaxGasPerBlock                   uint64 `mapstructure:"max_gas_per_block" json:"max_gas_per_block"`
		MaxScheduledExecutionsPerBlock   int    `mapstructure:"max_scheduled_executions_per_block" json:"max_scheduled_executions_per_block"`
		MaxScheduledExecutionGasPerBlock uint64 `mapstructure:"max_scheduled_execution_gas_per_block" json:"max_scheduled_execution_gas_per_block"`
		ParallelWorkers                  int    `mapstructure:"parallel_workers" json:"parallel_workers"`
	} `mapstructure:"execution" json:"execution"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
		Prune  bool   `mapstructure:"prune" json:"prune"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the TOS_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("TOS_ENV", ""))
}

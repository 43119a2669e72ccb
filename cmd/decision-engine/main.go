// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the decision-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/decision-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback if set, else the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the decision-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "decision-engine",
	Short: "Multi-agent product idea evaluation",
	Long: `decision-engine evaluates product ideas. Four analysis agents (market,
tech, risk, user feedback) examine an idea concurrently; their reports are
merged with a retrieval-augmented check against internal strategy documents
into a GO/NO_GO/PIVOT decision.

Run one evaluation with the evaluate subcommand, serve the HTTP API with
serve, manage the strategy index with strategy, and inspect past decisions
with decisions.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./decision-engine.yaml or ~/.config/decision-engine/config.yaml)")
	rootCmd.PersistentFlags().String("env", "development", "logger environment (development or production)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("decision-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "decision-engine"))
		}
	}

	viper.SetEnvPrefix("DECISION_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

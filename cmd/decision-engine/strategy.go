// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/decision-engine/internal/strategy"
)

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Manage the strategy document index",
	Long: `Strategy manages the index of internal strategy documents the engine
retrieves against during evaluation. Documents are YAML files of pre-chunked
passages; re-importing a document replaces its previous passages.`,
}

var strategyImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import strategy documents into the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if err := ensureParentDir(cfg.Retrieval.IndexPath); err != nil {
			return err
		}
		store, err := strategy.NewStore(cfg.Retrieval.IndexPath)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.ImportFile(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d passages from %s\n", n, args[0])
		return nil
	},
}

var strategyCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of indexed passages",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store, err := strategy.NewStore(cfg.Retrieval.IndexPath)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Count(context.Background())
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

func init() {
	strategyCmd.AddCommand(strategyImportCmd)
	strategyCmd.AddCommand(strategyCountCmd)
	rootCmd.AddCommand(strategyCmd)
}

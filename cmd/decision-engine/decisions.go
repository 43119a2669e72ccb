// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/decision-engine/internal/archive"
	"github.com/pdiddy/decision-engine/pkg/types"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions [run-id]",
	Short: "List or inspect archived decisions",
	Long: `Decisions reads the decision archive. With no argument it lists recent
decisions, newest first; with a run ID it prints that decision.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")
		if output != "json" && output != "yaml" {
			return fmt.Errorf("unknown output format %q", output)
		}

		cfg := loadConfig()
		store, err := archive.NewStore(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		var decisions []types.FinalDecision
		if len(args) == 1 {
			d, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			decisions = []types.FinalDecision{d}
		} else {
			decisions, err = store.List(ctx, limit)
			if err != nil {
				return err
			}
		}

		if output == "yaml" {
			return archive.ExportYAML(os.Stdout, decisions)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(decisions)
	},
}

func init() {
	decisionsCmd.Flags().Int("limit", 20, "maximum number of decisions to list")
	decisionsCmd.Flags().String("output", "json", "output format: json or yaml")
	rootCmd.AddCommand(decisionsCmd)
}

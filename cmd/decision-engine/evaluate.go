// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/decision-engine/internal/archive"
	"github.com/pdiddy/decision-engine/internal/workflow"
	"github.com/pdiddy/decision-engine/pkg/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [idea text]",
	Short: "Evaluate one product idea",
	Long: `Evaluate runs the full pipeline on one idea: the four analysis agents,
the strategy retrieval check, and decision synthesis. The decision prints to
stdout and is archived unless --no-archive is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noArchive, _ := cmd.Flags().GetBool("no-archive")
		output, _ := cmd.Flags().GetString("output")
		if output != "json" && output != "yaml" {
			return fmt.Errorf("unknown output format %q", output)
		}

		eng, err := buildEngine(!noArchive)
		if err != nil {
			return err
		}
		defer eng.close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		text, err := eng.guard.Check(strings.Join(args, " "))
		if err != nil {
			return err
		}

		idea := types.ProductIdea{
			Text:        text,
			SubmittedAt: time.Now().UTC(),
		}
		out := eng.runner.Run(ctx, idea)
		switch out.Kind {
		case workflow.OutcomeCancelled:
			return fmt.Errorf("evaluation cancelled")
		case workflow.OutcomeFailed:
			return out.Failure
		}

		if output == "yaml" {
			return archive.ExportYAML(os.Stdout, []types.FinalDecision{out.Decision})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out.Decision)
	},
}

func init() {
	evaluateCmd.Flags().Bool("no-archive", false, "do not persist the decision")
	evaluateCmd.Flags().String("output", "json", "output format: json or yaml")
	rootCmd.AddCommand(evaluateCmd)
}

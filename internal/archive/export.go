// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/decision-engine/pkg/types"
)

// ExportYAML writes decisions to w as a stream of YAML documents, for the
// decisions subcommand's yaml output.
func ExportYAML(w io.Writer, decisions []types.FinalDecision) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	for _, d := range decisions {
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("encoding decision %s: %w", d.RunID, err)
		}
	}
	return nil
}

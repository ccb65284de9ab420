package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cutflow/internal/analysis"
	"github.com/leapstack-labs/cutflow/internal/cli/config"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	var detector string

	cmd := &cobra.Command{
		Use:   "resolve <analysis.yaml>",
		Short: "Print the resolved analysis document",
		Long: `Merge the detector document into the analysis, substitute every
placeholder and print the result as YAML. Nothing is read from the dataset.`,
		Example: `  # Show what a run would use
  cutflow resolve analysis.yaml

  # Resolve against another detector
  cutflow resolve analysis.yaml --detector detectors/north.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, _, err := resolveAnalysis(cmd, args[0], detector)
			if err != nil {
				return err
			}
			out, err := resolved.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&detector, "detector", "", "Detector document, overriding detector_config")

	return cmd
}

// resolveAnalysis loads and resolves the analysis at path. The loaded
// documents are returned when only resolution fails.
func resolveAnalysis(cmd *cobra.Command, path, detector string) (*analysis.Resolved, *analysis.Documents, error) {
	logger := config.GetLogger(cmd.Context())

	docs, err := analysis.LoadDocuments(path, detector)
	if err != nil {
		return nil, nil, err
	}
	resolved, err := analysis.NewResolver(logger).Resolve(docs.Analysis, docs.Detector)
	if err != nil {
		return nil, docs, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return resolved, docs, nil
}

// Package cli provides the command-line interface for cutflow.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cutflow/internal/cli/commands"
	"github.com/leapstack-labs/cutflow/internal/cli/config"
	"github.com/leapstack-labs/cutflow/internal/logging"

	// Register the DuckDB engine.
	_ "github.com/leapstack-labs/cutflow/pkg/frame/duckdb"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "cutflow",
		Short: "cutflow - declarative event selection and histogramming",
		Long: `cutflow runs a YAML-described analysis over a columnar event dataset:
it defines derived columns, applies an ordered chain of cuts, fills
histograms and profiles, and reports the efficiency of every cut.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			level, _ := cfg.Level()
			logger := logging.New(cmd.ErrOrStderr(), logging.Options{Level: level, NoColor: cfg.NoColor})
			if cfg.ConfigFile != "" {
				logger.Debug("using config file", "path", cfg.ConfigFile)
			}

			cmd.SetContext(config.NewContext(cmd.Context(), cfg, logger))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go, DuckDB and Starlark
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: nearest cutflow.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error|critical)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored log output")
	rootCmd.PersistentFlags().String("database", "", "Path to the DuckDB database (empty for in-memory)")
	rootCmd.PersistentFlags().String("state", "", "Path to the run history database")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error", "critical"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewResolveCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command. A failure is logged at CRITICAL.
func Execute() error {
	rootCmd := NewRootCmd()
	cmd, err := rootCmd.ExecuteC()
	if err != nil {
		logger, ok := config.LoggerFrom(cmd.Context())
		if !ok {
			logger = logging.New(os.Stderr, logging.Options{})
		}
		logging.Critical(logger, "cutflow failed", "error", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for cutflow.

To load completions:

Bash:
  $ source <(cutflow completion bash)

Zsh:
  $ cutflow completion zsh > "${fpath[1]}/_cutflow"

Fish:
  $ cutflow completion fish | source

PowerShell:
  PS> cutflow completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/config"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/svc"
)

// Shared CLI flags (used across multiple command files)
var (
	cfgFile string
	verbose bool
)

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sreagent",
		Short: "Multi-cloud SRE agent state service",
		Long: `sreagent runs the stateful core of the multi-cloud SRE agent:
conversation sessions with task tracking, context compression for long
incidents, and the registry of generated cloud tools.

Run 'sreagent serve' to start the HTTP API.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(SessionsCmd())
	rootCmd.AddCommand(ToolsCmd())

	return rootCmd
}

// loadServiceContext loads config and builds the shared service context
func loadServiceContext() *svc.ServiceContext {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	svcCtx, err := svc.NewServiceContext(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return svcCtx
}

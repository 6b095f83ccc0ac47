package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/tools"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/logging"
)

// ToolsCmd creates the tools command
func ToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the generated tool registry",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !verbose {
				logging.Disable()
			}
		},
	}

	var provider, service string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools by quality",
		Run: func(cmd *cobra.Command, args []string) {
			svcCtx := loadServiceContext()

			results := svcCtx.Registry.SearchTools(tools.SearchOptions{
				CloudProvider: provider,
				Service:       service,
				Limit:         100,
			})
			if len(results) == 0 {
				fmt.Println("No tools found.")
				return
			}

			fmt.Println("Tools:")
			for _, tool := range results {
				fmt.Printf("  %-30s v%-8s %s/%s  quality=%.1f  calls=%d\n",
					tool.Name, tool.Version, tool.CloudProvider, tool.Service,
					tool.Metrics.QualityScore(), tool.Metrics.TotalCalls)
			}
		},
	}
	listCmd.Flags().StringVar(&provider, "provider", "", "filter by cloud provider")
	listCmd.Flags().StringVar(&service, "service", "", "filter by service")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show a tool's definition and metrics",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svcCtx := loadServiceContext()

			tool, ok := svcCtx.Registry.GetTool(args[0])
			if !ok {
				fmt.Printf("Tool %s not found.\n", args[0])
				return
			}

			fmt.Printf("Name:        %s\n", tool.Name)
			fmt.Printf("Version:     %s (%s)\n", tool.Version, tool.Status)
			fmt.Printf("Target:      %s/%s\n", tool.CloudProvider, tool.Service)
			fmt.Printf("Description: %s\n", tool.Description)
			fmt.Printf("Calls:       %d (%.1f%% success, avg %.2fs)\n",
				tool.Metrics.TotalCalls, tool.Metrics.SuccessRate()*100,
				tool.Metrics.AverageExecutionTime)
			fmt.Printf("Quality:     %.1f\n", tool.Metrics.QualityScore())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show registry-wide statistics",
		Run: func(cmd *cobra.Command, args []string) {
			svcCtx := loadServiceContext()

			stats := svcCtx.Registry.GetStatistics()
			fmt.Printf("Tools: %d (active %d, deprecated %d, failed %d)\n",
				stats.TotalTools, stats.ActiveTools, stats.DeprecatedTools, stats.FailedTools)
			fmt.Printf("Average quality: %.1f\n", stats.AverageQualityScore)
			for p, n := range stats.ByProvider {
				fmt.Printf("  %s: %d\n", p, n)
			}
			if len(stats.TopTools) > 0 {
				fmt.Println("Top tools:")
				for _, ranking := range stats.TopTools {
					fmt.Printf("  %-30s quality=%.1f calls=%d\n",
						ranking.Name, ranking.QualityScore, ranking.TotalCalls)
				}
			}
		},
	})

	return cmd
}

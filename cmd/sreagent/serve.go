package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/logging"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/server"
)

// ServeCmd creates the serve command
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the agent API server",
		Run: func(cmd *cobra.Command, args []string) {
			if !verbose {
				logging.Disable()
			}

			svcCtx := loadServiceContext()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				fmt.Printf("\nReceived signal: %v - shutting down...\n", sig)
				cancel()
			}()

			fmt.Printf("Serving on http://%s\n", svcCtx.Config.Server.Addr())
			if err := server.Run(ctx, svcCtx, server.Options{Quiet: !verbose}); err != nil {
				fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
				os.Exit(1)
			}
		},
	}
}

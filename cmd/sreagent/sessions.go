package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/logging"
)

// SessionsCmd creates the sessions command
func SessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect stored conversation sessions",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !verbose {
				logging.Disable()
			}
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List active sessions",
		Run: func(cmd *cobra.Command, args []string) {
			svcCtx := loadServiceContext()

			ids := svcCtx.Sessions.ListActiveSessions()
			if len(ids) == 0 {
				fmt.Println("No active sessions.")
				return
			}

			fmt.Println("Sessions:")
			for _, id := range ids {
				sess, ok := svcCtx.Sessions.GetSession(id)
				if !ok {
					continue
				}
				fmt.Printf("  %s  user=%s  messages=%d  tasks=%d  updated=%s\n",
					sess.SessionID, sess.UserID, len(sess.Messages), len(sess.Tasks),
					sess.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session summary",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svcCtx := loadServiceContext()

			summary, ok := svcCtx.Sessions.GetConversationSummary(args[0])
			if !ok {
				fmt.Printf("Session %s not found.\n", args[0])
				return
			}

			fmt.Printf("Session:  %s\n", summary.SessionID)
			fmt.Printf("Created:  %s\n", summary.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Updated:  %s\n", summary.UpdatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Messages: %d (user %d, assistant %d)\n",
				summary.TotalMessages, summary.UserMessages, summary.AssistantMessages)
			fmt.Printf("Tasks:    %d (completed %d, failed %d, pending %d)\n",
				summary.TotalTasks, summary.CompletedTasks, summary.FailedTasks, summary.PendingTasks)

			sess, ok := svcCtx.Sessions.GetSession(args[0])
			if !ok {
				return
			}
			if len(sess.ContextVariables) > 0 {
				fmt.Println("Context:")
				for k, v := range sess.ContextVariables {
					fmt.Printf("  %s = %v\n", k, v)
				}
			}
			for _, m := range sess.RecentMessages(3) {
				fmt.Printf("  [%s] %s\n", m.Role, m.Content)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show aggregate session statistics",
		Run: func(cmd *cobra.Command, args []string) {
			svcCtx := loadServiceContext()

			stats := svcCtx.Sessions.GetSessionStats()
			fmt.Printf("Active sessions: %d\n", stats.ActiveSessions)
			fmt.Printf("Messages:        %d\n", stats.TotalMessages)
			fmt.Printf("Tasks:           %d (completed %d, failed %d)\n",
				stats.TotalTasks, stats.CompletedTasks, stats.FailedTasks)
			fmt.Printf("Success rate:    %.1f%%\n", stats.SuccessRate*100)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <session-id>",
		Short: "Clear a session and its persisted record",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svcCtx := loadServiceContext()
			svcCtx.Sessions.ClearSession(args[0])
			fmt.Printf("Cleared session %s.\n", args[0])
		},
	})

	return cmd
}

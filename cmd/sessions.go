package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/classmark/classmark/internal/config"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage attendance sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored attendance sessions",
	RunE:  runSessionsList,
}

var sessionsStopCmd = &cobra.Command{
	Use:   "stop <session-id>",
	Short: "Stop an attendance session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsStop,
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired attendance sessions",
	Long: `Purge removes sessions past their expiry from storage. Expired sessions are
already rejected at submission time, so this only reclaims storage and keeps
'sessions list' readable.`,
	RunE: runSessionsPurge,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsStopCmd)
	sessionsCmd.AddCommand(sessionsPurgeCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	sessions, err := be.sessions.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions stored")
		return nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	now := time.Now()
	fmt.Printf("%-34s %-20s %-12s %-8s %s\n", "SESSION", "SUBJECT", "OWNER", "MODE", "STATE")
	for _, s := range sessions {
		state := "expired"
		if s.Live(now) {
			state = fmt.Sprintf("live (%s left)", time.Until(s.ExpiresAt).Round(time.Second))
		}
		fmt.Printf("%-34s %-20s %-12s %-8s %s\n", s.ID, s.Subject, s.Owner, s.Predicate.Mode, state)
	}
	return nil
}

func runSessionsStop(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	if err := be.sessions.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	fmt.Printf("Session %s stopped\n", args[0])
	return nil
}

func runSessionsPurge(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	n, err := be.sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge expired sessions: %w", err)
	}
	fmt.Printf("Purged %d expired sessions\n", n)
	return nil
}

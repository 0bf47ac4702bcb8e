package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/venue-scraper/internal/venue"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <task-id>",
		Short: "Processes one scraping task synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			status := appInstance.RunTask(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], status)
			if status == venue.StatusFailed {
				return fmt.Errorf("task %s failed", args[0])
			}
			return nil
		},
	}
}

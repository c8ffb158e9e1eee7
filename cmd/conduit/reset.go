package main

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/conduit-dev/conduit/internal/errors"
)

var resetAll bool

var resetCmd = &cobra.Command{
	Use:   "reset [project-id]",
	Short: "Clear recorded MCP status for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "Clear status for every project")

	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if resetAll {
		if err := a.reconciler.ClearAll(); err != nil {
			return err
		}
		fmt.Println("Cleared status for all projects")
		return nil
	}

	if len(args) == 0 {
		return apperrors.NewConfigurationError("project ID required (or pass --all)", nil)
	}
	projectID := args[0]
	if err := a.reconciler.Reset(projectID); err != nil {
		return err
	}
	fmt.Printf("Cleared status for %s\n", projectID)
	return nil
}

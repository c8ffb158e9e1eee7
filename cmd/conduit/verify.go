package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-dev/conduit/internal/clients"
	apperrors "github.com/conduit-dev/conduit/internal/errors"
	"github.com/conduit-dev/conduit/internal/verify"
)

var (
	verifyProject string
	verifyClient  string
	verifyWorkDir string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-check that the installed MCP server responds",
	Long: `Re-run verification for an already-installed project.

Reads the IDE client config, spawns the MCP server it points at, and
confirms the server answers a tools listing. Does not reinstall anything.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyProject, "project", "", "Project ID (defaults to the installed project)")
	verifyCmd.Flags().StringVar(&verifyClient, "client", "", "IDE client (defaults to the client recorded at install time)")
	verifyCmd.Flags().StringVar(&verifyWorkDir, "workdir", "", "Working directory for project-scoped client configs")

	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	projectID := verifyProject
	clientName := verifyClient
	if projectID == "" || clientName == "" {
		installed, err := a.reconciler.GetInstalledProject()
		if err != nil {
			return err
		}
		if installed == nil {
			return apperrors.NewNotFoundError("no installed project; run 'conduit connect' first", nil)
		}
		if projectID == "" {
			projectID = installed.ProjectID
		}
		if clientName == "" {
			clientName = installed.Client
		}
	}

	unlock := a.reconciler.LockProject(projectID)
	defer unlock()

	if err := a.reconciler.MarkVerifying(projectID, clientName); err != nil {
		return err
	}

	result := verify.New().Run(cmd.Context(), clients.ClientType(clientName), verify.Options{
		WorkDir:       verifyWorkDir,
		ServerCommand: a.settings.ServerCommand,
	})
	if !result.Verified {
		if err := a.reconciler.MarkFailed(projectID, clientName, result.Err); err != nil {
			return err
		}
		return result.Err
	}

	if err := a.reconciler.MarkVerified(projectID, clientName, result.Tools); err != nil {
		return err
	}
	fmt.Printf("Verified %s via %s (%d tools)\n", projectID, clients.Describe(clients.ClientType(clientName)), len(result.Tools))
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/conduit-dev/conduit/internal/api"
	"github.com/conduit-dev/conduit/internal/clients"
	apperrors "github.com/conduit-dev/conduit/internal/errors"
	"github.com/conduit-dev/conduit/internal/events"
	"github.com/conduit-dev/conduit/internal/installer"
	"github.com/conduit-dev/conduit/internal/logger"
	"github.com/conduit-dev/conduit/internal/tui"
	"github.com/conduit-dev/conduit/internal/verify"
)

var (
	connectOrg     string
	connectProject string
	connectClient  string
	connectWorkDir string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Install and verify the MCP server for a project",
	Long: `Connect an IDE AI agent to a Conduit project.

Signs you in if needed, lets you pick an organization, project, and IDE
client, mints a project API key, runs the installer, and verifies the MCP
server actually responds.

Examples:
  conduit connect
  conduit connect --project proj_123 --client cursor
  conduit connect --no-input --project proj_123 --client cursor`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectOrg, "org", "", "Organization ID (prompted when omitted)")
	connectCmd.Flags().StringVar(&connectProject, "project", "", "Project ID (prompted when omitted)")
	connectCmd.Flags().StringVar(&connectClient, "client", "", "IDE client (prompted when omitted)")
	connectCmd.Flags().StringVar(&connectWorkDir, "workdir", "", "Working directory for project-scoped client configs")

	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()

	// CONDUIT_API_KEY bypasses OAuth entirely.
	if os.Getenv("CONDUIT_API_KEY") == "" && !a.manager.IsAuthenticated(ctx) {
		if flagNoInput {
			return apperrors.NewUnauthorizedError("not signed in; run 'conduit login' or set CONDUIT_API_KEY", nil)
		}
		if _, err := a.newLoginFlow().Login(ctx); err != nil {
			return err
		}
	}

	client := a.apiClient()

	project, err := resolveProject(ctx, a, client)
	if err != nil {
		return err
	}

	clientType, err := resolveClient(a)
	if err != nil {
		return err
	}

	if flagNoInput || !stdoutIsTerminal() {
		unsubscribe := a.bus.Subscribe(func(e events.Event) {
			if log, ok := e.(events.InstallerLogEvent); ok {
				fmt.Printf("  %s\n", log.Line)
			}
		})
		defer unsubscribe()
		if err := a.connectFlow(ctx, client, project, clientType, func(phase string) {
			fmt.Println(phase)
		}); err != nil {
			return err
		}
		tools, _ := a.reconciler.GetTools(project.ID)
		fmt.Printf("Connected (%d tools)\n", len(tools))
		return nil
	}

	flowCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewConnect(a.bus)
	program := tea.NewProgram(model)

	go func() {
		err := a.connectFlow(flowCtx, client, project, clientType, func(phase string) {
			program.Send(tui.PhaseMsg(phase))
		})
		tools, _ := a.reconciler.GetTools(project.ID)
		program.Send(tui.DoneMsg{Err: err, Tools: tools})
	}()

	if _, err := program.Run(); err != nil {
		return err
	}
	// Ctrl+c quits the program before DoneMsg; stop the pipeline too.
	cancel()
	return model.Err()
}

// resolveProject turns flags (or prompts) into a concrete project and
// records the selection in the session.
func resolveProject(ctx context.Context, a *app, client *api.Client) (*api.Project, error) {
	if connectProject != "" {
		a.session.SetProject(connectProject, "")
		return &api.Project{ID: connectProject}, nil
	}

	orgID := connectOrg
	if orgID == "" {
		orgs, err := client.Organizations(ctx)
		if err != nil {
			return nil, err
		}
		org, err := pickOrg(orgs)
		if err != nil {
			return nil, err
		}
		orgID = org.ID
		a.session.SetOrg(org.ID, org.Name)
	} else {
		a.session.SetOrg(orgID, "")
	}

	projects, err := client.Projects(ctx, orgID)
	if err != nil {
		return nil, err
	}
	project, err := pickProject(projects)
	if err != nil {
		return nil, err
	}
	a.session.SetProject(project.ID, project.Name)
	return project, nil
}

func resolveClient(a *app) (clients.ClientType, error) {
	name := connectClient
	if name == "" {
		name = a.settings.DefaultClient
	}
	if name != "" {
		client := clients.ClientType(name)
		for _, supported := range clients.Supported() {
			if client == supported {
				return client, nil
			}
		}
		return "", apperrors.NewConfigurationError(
			fmt.Sprintf("unsupported client %q; supported: %v", name, clients.Supported()), nil)
	}
	if flagNoInput {
		return "", apperrors.NewConfigurationError("--client is required with --no-input", nil)
	}
	return tui.SelectClient()
}

func pickOrg(orgs []api.Organization) (*api.Organization, error) {
	if flagNoInput {
		if len(orgs) == 1 {
			return &orgs[0], nil
		}
		return nil, apperrors.NewConfigurationError("--org is required with --no-input", nil)
	}
	return tui.SelectOrganization(orgs)
}

func pickProject(projects []api.Project) (*api.Project, error) {
	if flagNoInput {
		if len(projects) == 1 {
			return &projects[0], nil
		}
		return nil, apperrors.NewConfigurationError("--project is required with --no-input", nil)
	}
	return tui.SelectProject(projects)
}

// connectFlow is the install+verify pipeline for one project. The
// per-project lock serializes concurrent attempts for the same project.
func (a *app) connectFlow(ctx context.Context, client *api.Client, project *api.Project, clientType clients.ClientType, progress func(string)) error {
	unlock := a.reconciler.LockProject(project.ID)
	defer unlock()

	if err := a.reconciler.MarkVerifying(project.ID, string(clientType)); err != nil {
		return err
	}

	fail := func(cause error) error {
		if err := a.reconciler.MarkFailed(project.ID, string(clientType), cause); err != nil {
			logger.Warnf("could not record failure: %v", err)
		}
		return cause
	}

	progress("minting project API key")
	key, err := client.CreateAPIKey(ctx, project.ID)
	if err != nil {
		return fail(err)
	}

	progress(fmt.Sprintf("running installer for %s", clients.Describe(clientType)))
	runner := installer.NewRunner(a.settings.InstallerCommand, a.bus)
	result := runner.Run(ctx, project.ID, string(clientType), key.Key, client.BaseURL(), connectWorkDir)
	if result.Cancelled {
		// Cancellation is not a failure; leave the entry resettable.
		if err := a.reconciler.Reset(project.ID); err != nil {
			logger.Warnf("could not reset status: %v", err)
		}
		return result.Err
	}
	if !result.Success {
		return fail(result.Err)
	}

	progress("verifying MCP connection")
	verifyResult := verify.New().Run(ctx, clientType, verify.Options{
		WorkDir:       connectWorkDir,
		ServerCommand: a.settings.ServerCommand,
	})
	if !verifyResult.Verified {
		return fail(verifyResult.Err)
	}

	if err := a.reconciler.MarkVerified(project.ID, string(clientType), verifyResult.Tools); err != nil {
		return err
	}

	// Best-effort realtime confirmation: has an agent actually called in?
	if conn, err := client.LatestMCPConnection(ctx, project.ID); err == nil && conn != nil {
		event := events.NewMCPConnectedEvent(project.ID, conn.ToolName, conn.CreatedAt)
		if err := a.reconciler.SetRealConnected(event); err == nil {
			a.bus.Publish(event)
		}
	}

	return nil
}

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-dev/conduit/internal/api"
	"github.com/conduit-dev/conduit/internal/auth"
	"github.com/conduit-dev/conduit/internal/config"
	"github.com/conduit-dev/conduit/internal/events"
	"github.com/conduit-dev/conduit/internal/logger"
	"github.com/conduit-dev/conduit/internal/state"
	"github.com/conduit-dev/conduit/internal/status"
)

// Version information (set at build time via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

var (
	flagConfigPath string
	flagNoInput    bool
)

var rootCmd = &cobra.Command{
	Use:   "conduit",
	Short: "Connect IDE AI agents to your Conduit projects",
	Long: `conduit signs you in to Conduit Cloud, installs the MCP server into
your IDE client, and verifies the agent can actually reach your project.

Start with 'conduit connect'.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Initialize()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "Path to config file (default: ~/.config/conduit/config.json)")
	rootCmd.PersistentFlags().BoolVar(&flagNoInput, "no-input", false, "Disable interactive prompts and TUI output")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSettings honors the --config flag.
func loadSettings() (*config.Settings, error) {
	if flagConfigPath != "" {
		return config.LoadFrom(flagConfigPath)
	}
	return config.Load()
}

// app bundles the wiring every command needs.
type app struct {
	settings   *config.Settings
	bus        *events.Bus
	store      auth.CredentialStore
	manager    *auth.Manager
	session    *auth.Session
	reconciler *status.Reconciler
}

func newApp() (*app, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	store, err := auth.NewCredentialStore(auth.StoreModeAuto)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	stateStore, err := state.NewLocalStore("", "mcp")
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	return &app{
		settings:   settings,
		bus:        bus,
		store:      store,
		manager:    auth.NewManager(store, settings.AuthBaseURL, settings.OAuthClientID, bus),
		session:    auth.NewSession(),
		reconciler: status.NewReconciler(stateStore, bus),
	}, nil
}

func (a *app) close() {
	a.bus.Close()
}

// apiClient builds the API transport. CONDUIT_API_KEY bypasses OAuth for
// CI and scripting; otherwise the bearer-token client is used.
func (a *app) apiClient() *api.Client {
	baseURL := a.settings.APIBaseURL
	if env := os.Getenv("CONDUIT_API_URL"); env != "" {
		baseURL = env
	}
	if key := os.Getenv("CONDUIT_API_KEY"); key != "" {
		return api.NewWithAPIKey(baseURL, key)
	}
	return api.NewClient(baseURL, auth.NewClient(a.manager))
}

// newLoginFlow builds a login flow from the settings. The manager is the
// flow's credential store so a fresh login lands in its cache.
func (a *app) newLoginFlow() *auth.Flow {
	return auth.NewFlow(auth.FlowConfig{
		ClientID:     a.settings.OAuthClientID,
		AuthBaseURL:  a.settings.AuthBaseURL,
		APIBaseURL:   a.settings.APIBaseURL,
		CallbackPort: a.settings.CallbackPort,
		Scope:        a.settings.Scope,
		Store:        a.manager,
		Bus:          a.bus,
	})
}

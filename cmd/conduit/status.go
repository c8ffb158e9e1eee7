package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conduit-dev/conduit/internal/clients"
	"github.com/conduit-dev/conduit/internal/tui/theme"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show MCP install status per project",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	all, err := a.reconciler.All()
	if err != nil {
		return err
	}

	if statusJSON {
		return outputJSON(all)
	}

	if len(all) == 0 {
		fmt.Println("No projects connected. Run 'conduit connect' to get started.")
		return nil
	}

	real, err := a.reconciler.RealConnected()
	if err != nil {
		return err
	}

	th := theme.New()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tCLIENT\tSTATUS\tTOOLS\tUPDATED")
	for _, ps := range all {
		client := ps.Client
		if client != "" {
			client = clients.Describe(clients.ClientType(ps.Client))
		}
		updated := ""
		if !ps.LastUpdated.IsZero() {
			updated = ps.LastUpdated.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			ps.ProjectID, client, th.StatusPill(ps.Status), len(ps.Tools), updated)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if real {
		fmt.Println()
		fmt.Printf("%s an agent has connected to this project\n", th.StatusIcon("verified"))
	}
	return nil
}

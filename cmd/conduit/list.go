package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	orgsJSON     bool
	projectsJSON bool
	projectsOrg  string
)

var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "List your organizations",
	RunE:  runOrgs,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects in an organization",
	Long: `List projects in an organization.

Examples:
  conduit projects --org org_123
  conduit projects --org org_123 --json`,
	RunE: runProjects,
}

func init() {
	orgsCmd.Flags().BoolVar(&orgsJSON, "json", false, "Output as JSON")
	projectsCmd.Flags().BoolVar(&projectsJSON, "json", false, "Output as JSON")
	projectsCmd.Flags().StringVar(&projectsOrg, "org", "", "Organization ID (prompted when omitted)")

	rootCmd.AddCommand(orgsCmd)
	rootCmd.AddCommand(projectsCmd)
}

func runOrgs(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	orgs, err := a.apiClient().Organizations(cmd.Context())
	if err != nil {
		return err
	}

	if orgsJSON {
		return outputJSON(orgs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSLUG")
	for _, org := range orgs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", org.ID, org.Name, org.Slug)
	}
	return w.Flush()
}

func runProjects(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	client := a.apiClient()

	orgID := projectsOrg
	if orgID == "" {
		orgs, err := client.Organizations(cmd.Context())
		if err != nil {
			return err
		}
		org, err := pickOrg(orgs)
		if err != nil {
			return err
		}
		orgID = org.ID
	}

	projects, err := client.Projects(cmd.Context(), orgID)
	if err != nil {
		return err
	}

	if projectsJSON {
		return outputJSON(projects)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tREGION\tSTATUS")
	for _, project := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", project.ID, project.Name, project.Region, project.Status)
	}
	return w.Flush()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

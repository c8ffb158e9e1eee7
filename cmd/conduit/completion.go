package main

import (
	"github.com/spf13/cobra"

	"github.com/conduit-dev/conduit/internal/clients"
)

func init() {
	resetCmd.ValidArgsFunction = completeProjectIDs
	verifyCmd.ValidArgsFunction = cobra.NoFileCompletions

	// Flag completions
	_ = connectCmd.RegisterFlagCompletionFunc("client", completeClientFlag)
	_ = verifyCmd.RegisterFlagCompletionFunc("client", completeClientFlag)
	_ = verifyCmd.RegisterFlagCompletionFunc("project", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return projectIDs(), cobra.ShellCompDirectiveNoFileComp
	})
}

func completeClientFlag(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	supported := clients.Supported()
	names := make([]string, len(supported))
	for i, c := range supported {
		names[i] = string(c)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// projectIDs lists projects with recorded status. Completion never hits
// the network, so only locally known projects appear.
func projectIDs() []string {
	a, err := newApp()
	if err != nil {
		return nil
	}
	defer a.close()
	all, err := a.reconciler.All()
	if err != nil {
		return nil
	}
	names := make([]string, len(all))
	for i, ps := range all {
		names[i] = ps.ProjectID
	}
	return names
}

// completeProjectIDs completes a project ID for the first argument.
func completeProjectIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return projectIDs(), cobra.ShellCompDirectiveNoFileComp
}

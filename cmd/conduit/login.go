package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Conduit Cloud",
	Long: `Sign in via your browser.

A local callback server receives the redirect; tokens are stored in your
system keychain (or a private file when no keychain is available).`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.manager.IsAuthenticated(cmd.Context()) {
		if rec, err := a.manager.Current(); err == nil && rec != nil && rec.User != nil {
			fmt.Printf("Already signed in as %s. Run 'conduit logout' first to switch accounts.\n", rec.User.Email)
			return nil
		}
	}

	result, err := a.newLoginFlow().Login(cmd.Context())
	if err != nil {
		return err
	}

	if result.User != nil {
		fmt.Printf("Signed in as %s\n", result.User.Email)
	} else {
		fmt.Println("Signed in")
	}
	return nil
}

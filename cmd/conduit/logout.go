package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.manager.Logout(); err != nil {
			return err
		}
		a.session.Reset()

		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		rec, err := a.manager.Current()
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Println("Not signed in. Run 'conduit login'.")
			return nil
		}

		if rec.User == nil {
			// Profile fetch failed at login time; try again now.
			user, err := a.apiClient().Profile(cmd.Context())
			if err != nil {
				fmt.Println("Signed in (profile unavailable)")
				return nil
			}
			rec.User = user
		}

		fmt.Printf("%s", rec.User.Email)
		if rec.User.Name != "" {
			fmt.Printf(" (%s)", rec.User.Name)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

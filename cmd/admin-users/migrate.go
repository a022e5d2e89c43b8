package main

import (
	"fmt"

	"github.com/spf13/cobra"

	users "github.com/goliatone/go-admin-users"
)

func newMigrateCmd(app *App) *cobra.Command {
	var rollback bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			run := users.Migrate
			verb := "applied"
			if rollback {
				run = users.Rollback
				verb = "rolled back"
			}

			names, err := run(cmd.Context(), app.db)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				_, _ = fmt.Fprintln(out, "nothing to do")
				return nil
			}
			for _, name := range names {
				_, _ = fmt.Fprintf(out, "%s %s\n", verb, name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last migration group")

	return cmd
}

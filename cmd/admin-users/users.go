package main

import (
	"fmt"

	"github.com/goliatone/go-print"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	users "github.com/goliatone/go-admin-users"
)

func newUsersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users from the command line",
	}

	cmd.AddCommand(
		newCreateAdminCmd(app),
		newRegenerateTokenCmd(app),
	)

	return cmd
}

func newCreateAdminCmd(app *App) *cobra.Command {
	var (
		email    string
		password string
		first    string
		last     string
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin user with a deterministic id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := users.NewUserService(users.NewRepositoryManager(app.db),
				users.WithUserServiceLoggerProvider(app.LoggerProvider()),
				users.WithUserIDGenerator(func(email string) (uuid.UUID, error) {
					return hashid.NewUUID(email)
				}),
			)

			user, err := svc.Create(cmd.Context(), users.CreateUserPayload{
				Email:     email,
				FirstName: first,
				LastName:  last,
				Role:      string(users.RoleAdmin),
				Password:  password,
			})
			if err != nil {
				if fields, ok := users.ValidationFields(err); ok {
					return fmt.Errorf("invalid admin: %s", print.MaybePrettyJSON(fields))
				}
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\ntoken: %s\n",
				user.Email, user.ID, user.AuthenticationToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&first, "first-name", "", "first name")
	cmd.Flags().StringVar(&last, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newRegenerateTokenCmd(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "regenerate-token",
		Short: "Issue a new API token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo := users.NewRepositoryManager(app.db)

			user, err := repo.Users().FindByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}

			svc := users.NewUserService(repo, users.WithUserServiceLoggerProvider(app.LoggerProvider()))
			user, err = svc.RegenerateToken(cmd.Context(), user.ID.String())
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", user.AuthenticationToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "user email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basit/shifter/accounts"
	"github.com/basit/shifter/initializers"
	"github.com/basit/shifter/jobs"
)

func NewCleanupExpired(cfg *initializers.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanupexpired",
		Short: "Delete expired files and their content",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.cleanup.Run(cmd.Context())
			if n > 0 || err == nil {
				cmd.Println(jobs.Summary(n))
			}
			return err
		},
	}
}

func NewCreateSettings(cfg *initializers.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "createsettings",
		Short: "Seed default site settings and drop unknown ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.settings.Setup(cmd.Context())
			if err != nil {
				return err
			}
			for _, key := range report.Created {
				cmd.Printf("Created setting %s\n", key)
			}
			for _, key := range report.Deleted {
				cmd.Printf("Deleted setting %s\n", key)
			}
			if len(report.Created) == 0 && len(report.Deleted) == 0 {
				cmd.Println("Site settings are up to date")
			}
			return nil
		},
	}
}

func NewCreateUser(cfg *initializers.Config) *cobra.Command {
	var (
		email    string
		password string
		staff    bool
	)
	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			user, err := a.accounts.Create(cmd.Context(), accounts.CreateParams{
				Email:    email,
				Password: password,
				IsStaff:  staff,
			})
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			cmd.Printf("Created user %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address to log in with")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.Flags().BoolVar(&staff, "staff", false, "Grant access to settings and user management")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

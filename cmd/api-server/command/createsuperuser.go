package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/models"
	"yamdb/internal/microservices/http-api/repository"
	"yamdb/internal/microservices/http-api/service"
)

// createSuperuserCmd bootstraps an operator account. The account starts
// inactive like any other and is activated by exchanging the mailed code.
var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create an admin superuser and send it a confirmation code",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		if err := service.ValidateUsername(username); err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		mailer, err := a.newMailer()
		if err != nil {
			return err
		}
		defer mailer.Close()

		repos := a.repositories()
		if err := ensureSuperuser(ctx, repos.users, username, email); err != nil {
			return err
		}

		// sign-up on an existing identical account only issues a new code
		auth := a.services(repos, mailer).Auth
		resp, err := auth.Signup(ctx, dto.SignupRequest{Username: username, Email: email})
		if err != nil {
			return err
		}
		if resp.Warning != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", resp.Warning)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "superuser %s ready, confirmation code sent to %s\n", resp.Username, resp.Email)
		return nil
	},
}

// ensureSuperuser creates the admin account or promotes the existing one.
// An existing handle is only promoted when the email matches, so a failed
// run leaves the account untouched.
func ensureSuperuser(ctx context.Context, users repository.UserRepository, username, email string) error {
	existing, err := users.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user := &models.User{
			Username:    username,
			Email:       email,
			Role:        access.RoleAdmin,
			IsSuperuser: true,
		}
		if err := users.Create(ctx, user); err != nil {
			return fmt.Errorf("create superuser: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("look up %s: %w", username, err)
	}

	if !strings.EqualFold(existing.Email, email) {
		return fmt.Errorf("%s is registered with a different email", username)
	}
	if err := users.Update(ctx, existing.ID, map[string]any{
		"role":         access.RoleAdmin,
		"is_superuser": true,
	}); err != nil {
		return fmt.Errorf("promote %s: %w", username, err)
	}
	return nil
}

func init() {
	createSuperuserCmd.Flags().String("username", "", "superuser handle")
	createSuperuserCmd.Flags().String("email", "", "superuser email address")
	_ = createSuperuserCmd.MarkFlagRequired("username")
	_ = createSuperuserCmd.MarkFlagRequired("email")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/posguard/internal/app"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
	"github.com/dropDatabas3/posguard/internal/rbac"
	"github.com/dropDatabas3/posguard/internal/security/password"
)

type adminInput struct {
	Email    string
	Name     string
	Role     string
	OrgID    string
	StoreID  string
	Password string
}

func newBootstrapAdminCmd(c *cli) *cobra.Command {
	var (
		in     adminInput
		pwdEnv string
	)
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first administrator identity",
		Long: `Creates an identity directly in the store, outside the invitation flow.
The password is read from the environment variable named by --password-env.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Password = os.Getenv(pwdEnv)
			a, err := c.build(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			id, err := bootstrapAdmin(cmd.Context(), a.Repos.Identities(), in, password.DefaultPolicy, password.Default, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s) scope=%s\n", id.Role, id.Email, id.ID, id.Scope)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "email of the new identity")
	f.StringVar(&in.Name, "name", "", "display name")
	f.StringVar(&in.Role, "role", string(rbac.RoleSuperAdmin), "role")
	f.StringVar(&in.OrgID, "org", "", "organization id (required unless super_admin)")
	f.StringVar(&in.StoreID, "store", "", "store id")
	f.StringVar(&pwdEnv, "password-env", "POSCTL_ADMIN_PASSWORD", "env var holding the password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func bootstrapAdmin(ctx context.Context, repo repository.IdentityRepository, in adminInput, policy password.Policy, params password.Params, now time.Time) (*repository.Identity, error) {
	email := repository.NormalizeEmail(in.Email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", in.Email)
	}
	role, err := rbac.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	scope := rbac.Scope{OrganizationID: strings.TrimSpace(in.OrgID), StoreID: strings.TrimSpace(in.StoreID)}
	if err := scope.ValidFor(role); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, errors.New("password is empty")
	}
	if ok, problems := policy.Validate(in.Password); !ok {
		return nil, fmt.Errorf("weak password: %s", strings.Join(problems, "; "))
	}
	hash, err := password.Hash(params, in.Password)
	if err != nil {
		return nil, err
	}

	id := repository.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
		Scope:        scope,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("identity %s already exists: %w", email, err)
		}
		return nil, err
	}
	logger.From(ctx).Info("identity bootstrapped",
		logger.Component("posctl"), logger.IdentityID(id.ID), logger.Role(string(role)))
	return &id, nil
}

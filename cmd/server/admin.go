package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rpggio/tally/internal/domain/asset"
	"github.com/rpggio/tally/internal/domain/operator"
	"github.com/rpggio/tally/internal/sqlite"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.openDB(); err != nil {
				return err
			}
			a.logger.Info("migrations applied", "db", a.cfg.DB.Path)
			return nil
		},
	}
}

func newUserCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage operators and managers",
	}

	var (
		tenant, id, name, email string
		perms                   []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			req := operator.CreateRequest{ID: id, Name: name, Email: email}
			for _, p := range perms {
				req.Permissions = append(req.Permissions, operator.Permission(p))
			}
			user, err := operator.NewService(sqlite.NewUserRepository(db), a.logger).
				Create(cmd.Context(), a.tenant(tenant), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	}
	create.Flags().StringVar(&tenant, "tenant", "", "tenant id (defaults to the configured default tenant)")
	create.Flags().StringVar(&id, "id", "", "user id (generated when empty)")
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringSliceVar(&perms, "perm", []string{string(operator.PermExecute)},
		"permission to grant (inventory.manage, inventory.execute); repeatable")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}

func newAPIKeyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage bearer tokens",
	}

	var tenant, user, description string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a token for a user and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			tenantID := a.tenant(tenant)
			if _, err := sqlite.NewUserRepository(db).Get(cmd.Context(), tenantID, user); err != nil {
				return fmt.Errorf("user %s: %w", user, err)
			}
			token, err := sqlite.NewAPIKeyRepository(db).Create(cmd.Context(), tenantID, user, "", description)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	create.Flags().StringVar(&tenant, "tenant", "", "tenant id (defaults to the configured default tenant)")
	create.Flags().StringVar(&user, "user", "", "user the token acts as")
	create.Flags().StringVar(&description, "description", "", "free-form label")
	_ = create.MarkFlagRequired("user")

	cmd.AddCommand(create)
	return cmd
}

// catalogFile is the YAML layout accepted by `catalog import`.
type catalogFile struct {
	Locations []asset.Location `yaml:"locations"`
	Assets    []asset.Asset    `yaml:"assets"`
}

func loadCatalogFile(path string) (*catalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	for i, a := range f.Assets {
		if a.ID == "" || a.Code == "" {
			return nil, fmt.Errorf("asset %d: id and code are required", i)
		}
	}
	return &f, nil
}

func newCatalogCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Load the asset catalog the engine reconciles against",
	}

	var tenant string
	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Upsert locations and assets from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadCatalogFile(args[0])
			if err != nil {
				return err
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			repo := sqlite.NewCatalogRepository(db)
			tenantID := a.tenant(tenant)
			for i := range f.Locations {
				if err := repo.SaveLocation(cmd.Context(), tenantID, &f.Locations[i]); err != nil {
					return err
				}
			}
			for i := range f.Assets {
				if err := repo.SaveAsset(cmd.Context(), tenantID, &f.Assets[i]); err != nil {
					return fmt.Errorf("asset %s: %w", f.Assets[i].ID, err)
				}
			}
			a.logger.Info("catalog imported", "tenant", tenantID,
				"locations", len(f.Locations), "assets", len(f.Assets))
			return nil
		},
	}
	importCmd.Flags().StringVar(&tenant, "tenant", "", "tenant id (defaults to the configured default tenant)")

	cmd.AddCommand(importCmd)
	return cmd
}

func (a *app) tenant(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Auth.DefaultTenant
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRegisterCmd() *cobra.Command {
	var user, name, pass, email string
	var level int

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"username":       user,
				"fullName":       name,
				"password":       pass,
				"privilegeLevel": level,
			}
			if email != "" {
				req["email"] = email
			}

			var result envelope[Profile]
			if err := client.Post(cmd.Context(), "/api/users", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result.Data)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&name, "name", "", "Full name (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().IntVar(&level, "level", 0, "Privilege level, 0 or 1")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newLoginCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"username": user,
				"password": pass,
			}

			var result envelope[LoginResult]
			if err := client.Post(cmd.Context(), "/api/users/login", req, &result); err != nil {
				return err
			}

			// Save token
			if err := cfg.SaveToken(result.Data.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result.Data)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current account's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result envelope[Profile]
			if err := client.Get(cmd.Context(), "/api/users/current", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result.Data)
			return nil
		},
	}
}

func newUpdateCmd() *cobra.Command {
	var user, name, pass, email string
	var level int

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update fields of the current account's profile",
		Long:  "Only the flags given are sent; everything else is left unchanged.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{}
			flags := cmd.Flags()
			if flags.Changed("user") {
				req["username"] = user
			}
			if flags.Changed("name") {
				req["fullName"] = name
			}
			if flags.Changed("pass") {
				req["password"] = pass
			}
			if flags.Changed("email") {
				req["email"] = email
			}
			if flags.Changed("level") {
				req["privilegeLevel"] = level
			}
			if len(req) == 0 {
				return fmt.Errorf("nothing to update: pass at least one of --user, --name, --pass, --email, --level")
			}

			var result envelope[Profile]
			if err := client.Patch(cmd.Context(), "/api/users/current", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result.Data)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "New username")
	cmd.Flags().StringVar(&name, "name", "", "New full name")
	cmd.Flags().StringVar(&pass, "pass", "", "New password")
	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().IntVar(&level, "level", 0, "New privilege level, 0 or 1")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and remove the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete(cmd.Context(), "/api/users/logout", nil); err != nil {
				return err
			}

			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).PrintMessage("Logged out")
			return nil
		},
	}
}

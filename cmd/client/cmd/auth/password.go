package auth

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var forgotCmd = &cobra.Command{
	Use:   "forgot-password <email>",
	Short: "Request a password reset email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)

		ctx, cancel := requestContext(cmd)
		defer cancel()
		if err := app.API.ForgotPassword(ctx, args[0]); err != nil {
			return err
		}

		fmt.Println("If that email is registered, a reset link has been sent.")
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset-password <token>",
	Short: "Set a new password using a reset token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)

		fmt.Print("New password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		ctx, cancel := requestContext(cmd)
		defer cancel()
		if err := app.API.ResetPassword(ctx, args[0], string(password)); err != nil {
			return err
		}

		fmt.Println("Password has been reset, you can log in now.")
		return nil
	},
}

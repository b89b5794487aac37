package auth

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginEmail string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email and password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := appFrom(cmd)

		email := loginEmail
		if email == "" {
			fmt.Print("Email: ")
			if _, err := fmt.Scanln(&email); err != nil {
				return fmt.Errorf("read email: %w", err)
			}
		}

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		ctx, cancel := requestContext(cmd)
		defer cancel()
		user, err := app.Login(ctx, email, string(password))
		if err != nil {
			return err
		}

		fmt.Printf("Logged in as %s <%s>\n", user.Name, user.Email)
		return nil
	},
}

var registerName string

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		ctx, cancel := requestContext(cmd)
		defer cancel()
		user, err := app.Register(ctx, registerName, args[0], string(password))
		if err != nil {
			return err
		}

		fmt.Printf("Account created for %s <%s>\n", user.Name, user.Email)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&registerName, "name", "", "display name")
	_ = registerCmd.MarkFlagRequired("name")
}

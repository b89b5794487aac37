// Package auth 实现账号相关的子命令。
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ezycv/cmd/client/cmd/types"
	"ezycv/internal/client"
)

const requestTimeout = 30 * time.Second

// AuthCmd 是账号操作的父命令。
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage your EzyCV account",
}

func appFrom(cmd *cobra.Command) *client.App {
	return cmd.Context().Value(types.ClientAppKey).(*client.App)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the saved login session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := appFrom(cmd).Logout(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the current account profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := appFrom(cmd)

		ctx, cancel := requestContext(cmd)
		defer cancel()
		user, err := app.API.Me(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("ID:       %d\n", user.ID)
		fmt.Printf("Name:     %s\n", user.Name)
		fmt.Printf("Email:    %s\n", user.Email)
		fmt.Printf("Provider: %s\n", user.AuthProvider)
		if user.PhoneNumber != "" {
			fmt.Printf("Phone:    %s\n", user.PhoneNumber)
		}
		return nil
	},
}

func init() {
	AuthCmd.AddCommand(loginCmd)
	AuthCmd.AddCommand(registerCmd)
	AuthCmd.AddCommand(logoutCmd)
	AuthCmd.AddCommand(meCmd)
	AuthCmd.AddCommand(googleCmd)
	AuthCmd.AddCommand(facebookCmd)
	AuthCmd.AddCommand(phoneCmd)
	AuthCmd.AddCommand(forgotCmd)
	AuthCmd.AddCommand(resetCmd)
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ezycv/cmd/client/cmd/types"
	"ezycv/internal/client"
)

var (
	contactName    string
	contactEmail   string
	contactSubject string
	contactMessage string
)

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Send a message to the EzyCV team",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		ctx, cancel := context.WithTimeout(cmd.Context(), rootCmdTimeout)
		defer cancel()
		if err := app.API.SubmitContact(ctx, contactName, contactEmail, contactSubject, contactMessage); err != nil {
			return err
		}

		fmt.Println("Message sent, we will get back to you soon.")
		return nil
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <email>",
	Short: "Subscribe to the EzyCV newsletter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		ctx, cancel := context.WithTimeout(cmd.Context(), rootCmdTimeout)
		defer cancel()
		if err := app.API.Subscribe(ctx, args[0]); err != nil {
			return err
		}

		fmt.Println("Subscribed.")
		return nil
	},
}

func init() {
	contactCmd.Flags().StringVar(&contactName, "name", "", "your name")
	contactCmd.Flags().StringVar(&contactEmail, "email", "", "your email address")
	contactCmd.Flags().StringVar(&contactSubject, "subject", "", "message subject")
	contactCmd.Flags().StringVar(&contactMessage, "message", "", "message body")
	_ = contactCmd.MarkFlagRequired("name")
	_ = contactCmd.MarkFlagRequired("email")
	_ = contactCmd.MarkFlagRequired("subject")
	_ = contactCmd.MarkFlagRequired("message")
}

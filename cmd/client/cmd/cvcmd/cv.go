// Package cvcmd 实现简历草稿和服务端简历的子命令。
package cvcmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ezycv/cmd/client/cmd/types"
	"ezycv/internal/client"
)

const requestTimeout = 30 * time.Second

// CVCmd 是简历操作的父命令。
var CVCmd = &cobra.Command{
	Use:   "cv",
	Short: "Build and manage CVs",
}

func appFrom(cmd *cobra.Command) *client.App {
	return cmd.Context().Value(types.ClientAppKey).(*client.App)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved CVs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := appFrom(cmd)

		ctx, cancel := requestContext(cmd)
		defer cancel()
		items, err := app.API.ListCVs(ctx, app.SessionID())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No saved CVs yet.")
			return nil
		}

		for _, item := range items {
			ready := ""
			if item.PdfReady {
				ready = " [pdf ready]"
			}
			fmt.Printf("%4d  %-14s %s  downloads=%d%s\n",
				item.ID, item.Template, item.UpdatedAt.Format("2006-01-02 15:04"), item.Downloads, ready)
		}
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current draft to the server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := appFrom(cmd)

		ctx, cancel := requestContext(cmd)
		defer cancel()
		saved, err := app.SaveDraft(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Saved CV #%d (template %s)\n", saved.ID, saved.Template)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved CV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)

		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := requestContext(cmd)
		defer cancel()
		if err := app.API.DeleteCV(ctx, id, app.SessionID()); err != nil {
			return err
		}

		fmt.Printf("Deleted CV #%d\n", id)
		return nil
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available CV templates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := appFrom(cmd)

		ctx, cancel := requestContext(cmd)
		defer cancel()
		templates, err := app.API.Templates(ctx)
		if err != nil {
			return err
		}

		for _, t := range templates {
			fmt.Printf("%-14s %s\n", t.ID, t.Description)
		}
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload the current draft as a server-side backup",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := appFrom(cmd)

		ctx, cancel := requestContext(cmd)
		defer cancel()
		if err := app.BackupDraft(ctx); err != nil {
			return err
		}

		fmt.Println("Draft backed up.")
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the draft from the server-side backup",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := appFrom(cmd)

		ctx, cancel := requestContext(cmd)
		defer cancel()
		if err := app.RestoreDraft(ctx); err != nil {
			return err
		}

		fmt.Println("Draft restored from backup.")
		return nil
	},
}

func init() {
	CVCmd.AddCommand(listCmd)
	CVCmd.AddCommand(saveCmd)
	CVCmd.AddCommand(deleteCmd)
	CVCmd.AddCommand(templatesCmd)
	CVCmd.AddCommand(backupCmd)
	CVCmd.AddCommand(restoreCmd)
	CVCmd.AddCommand(downloadCmd)
	CVCmd.AddCommand(editCmd)
	CVCmd.AddCommand(showCmd)
	CVCmd.AddCommand(resetCmd)
}

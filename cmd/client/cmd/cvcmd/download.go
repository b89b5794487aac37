package cvcmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// PDF 生成走后台队列，给轮询留出更长的时间。
const downloadTimeout = 2 * time.Minute

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "Generate and download a CV as PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := appFrom(cmd)

		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		output := downloadOutput
		if output == "" {
			output = fmt.Sprintf("cv-%d.pdf", id)
		}
		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer file.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), downloadTimeout)
		defer cancel()

		fmt.Println("Generating PDF...")
		if err := app.DownloadCV(ctx, id, file); err != nil {
			os.Remove(output)
			return err
		}

		fmt.Printf("Saved %s\n", output)
		return nil
	},
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid cv id %q", raw)
	}
	return uint(id), nil
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file (default cv-<id>.pdf)")
}

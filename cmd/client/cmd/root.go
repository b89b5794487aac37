// 命令行客户端入口：组装配置与应用，再把控制权交给子命令。
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ezycv/cmd/client/cmd/auth"
	"ezycv/cmd/client/cmd/cvcmd"
	"ezycv/cmd/client/cmd/media"
	"ezycv/cmd/client/cmd/types"
	"ezycv/internal/client"
)

var (
	serverURL string
	dataDir   string
	debug     bool
)

var rootCmd = &cobra.Command{
	Use:   "ezycv",
	Short: "EzyCV command line client",
	Long: `EzyCV client for building CVs, browsing wallpapers and stock photos,
and managing your account from the terminal.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute 运行根命令。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	v.SetEnvPrefix("EZYCV")
	v.AutomaticEnv()
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("timeout", "15s")

	cfg := client.Config{
		ServerURL:      v.GetString("server_url"),
		FirebaseAPIKey: v.GetString("firebase_api_key"),
		DataDir:        v.GetString("data_dir"),
		Timeout:        v.GetDuration("timeout"),
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	app, err := client.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}

	cmd.SetContext(context.WithValue(cmd.Context(), types.ClientAppKey, app))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "EzyCV server base URL")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "local state directory (default ~/.ezycv)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(cvcmd.CVCmd)
	rootCmd.AddCommand(media.WallpapersCmd)
	rootCmd.AddCommand(media.PhotosCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(contactCmd)
	rootCmd.AddCommand(subscribeCmd)
}

const rootCmdTimeout = 30 * time.Second

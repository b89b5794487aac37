package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"ezycv/cmd/client/cmd/types"
	"ezycv/internal/client"
)

var watchStats bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show site and personal usage statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := cmd.Context().Value(types.ClientAppKey).(*client.App)

		poller := client.NewStatsPoller(app.API, app.StatsStore, app.Logger)

		if watchStats {
			// 周期刷新直到 Ctrl+C。
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			go poller.Run(ctx)

			<-ctx.Done()
			printStats(app, poller)
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), rootCmdTimeout)
		defer cancel()
		stats, err := app.API.LiveStats(ctx)
		if err != nil {
			app.Logger.Warn("live stats unavailable, showing local counts", "error", err)
		}

		display := client.DisplayStats(nil, app.StatsStore.Site())
		if err == nil {
			display = client.DisplayStats(&stats, app.StatsStore.Site())
		}

		printSiteStats(display.CVsCreated, display.TotalDownloads, display.Wallpapers, display.StockPhotos)
		printUserStats(app)
		return nil
	},
}

func printStats(app *client.App, poller *client.StatsPoller) {
	display := poller.Display()
	printSiteStats(display.CVsCreated, display.TotalDownloads, display.Wallpapers, display.StockPhotos)
	printUserStats(app)
}

func printSiteStats(cvs, downloads, wallpapers, photos int64) {
	fmt.Println("Site statistics:")
	fmt.Printf("  CVs created:     %d\n", cvs)
	fmt.Printf("  Total downloads: %d\n", downloads)
	fmt.Printf("  Wallpapers:      %d\n", wallpapers)
	fmt.Printf("  Stock photos:    %d\n", photos)
}

func printUserStats(app *client.App) {
	user := app.StatsStore.User()
	fmt.Println("Your activity:")
	fmt.Printf("  CVs created:           %d\n", user.CVsCreated)
	fmt.Printf("  CVs downloaded:        %d\n", user.CVsDownloaded)
	fmt.Printf("  Wallpapers downloaded: %d\n", user.WallpapersDownloaded)
	fmt.Printf("  Photos downloaded:     %d\n", user.PhotosDownloaded)
	fmt.Printf("  Total downloads:       %d\n", user.TotalDownloads)
	if len(user.TemplatesUsed) > 0 {
		fmt.Printf("  Templates used:        %v\n", user.TemplatesUsed)
	}
}

func init() {
	statsCmd.Flags().BoolVarP(&watchStats, "watch", "w", false, "keep polling live statistics until interrupted")
}

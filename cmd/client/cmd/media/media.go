// Package media 实现壁纸和图库照片的子命令。两组命令共用同一套实现，
// 只有接口前缀不同。
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ezycv/cmd/client/cmd/types"
	"ezycv/internal/apiclient"
	"ezycv/internal/client"
)

const requestTimeout = 60 * time.Second

// WallpapersCmd 是壁纸操作的父命令。
var WallpapersCmd = newKindCommand("wallpapers", "Browse and download wallpapers", apiclient.KindWallpaper)

// PhotosCmd 是图库照片操作的父命令。
var PhotosCmd = newKindCommand("photos", "Browse and download stock photos", apiclient.KindPhoto)

func appFrom(cmd *cobra.Command) *client.App {
	return cmd.Context().Value(types.ClientAppKey).(*client.App)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

func newKindCommand(use, short string, kind apiclient.MediaKind) *cobra.Command {
	parent := &cobra.Command{Use: use, Short: short}

	parent.AddCommand(newListCommand(kind))
	parent.AddCommand(newSearchCommand(kind))
	parent.AddCommand(newGetCommand(kind))
	parent.AddCommand(newCategoriesCommand(kind))
	parent.AddCommand(newDownloadCommand(kind))
	parent.AddCommand(newLikeCommand(kind))
	parent.AddCommand(newUploadCommand(kind))
	return parent
}

func newListCommand(kind apiclient.MediaKind) *cobra.Command {
	var opts apiclient.MediaListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd)

			ctx, cancel := requestContext(cmd)
			defer cancel()
			page, err := app.API.ListMedia(ctx, kind, opts)
			if err != nil {
				return err
			}

			printPage(page)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Category, "category", "", "filter by category")
	cmd.Flags().StringVar(&opts.DeviceType, "device", "", "filter by device type (desktop, mobile, tablet)")
	cmd.Flags().BoolVar(&opts.Featured, "featured", false, "only featured items")
	cmd.Flags().StringVar(&opts.Search, "search", "", "search in title, description and tags")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort order (trending, popular, newest, random)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "items per page")
	return cmd
}

// newSearchCommand 逐行读取输入并防抖查询，回车空行退出。
func newSearchCommand(kind apiclient.MediaKind) *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "Interactive search, type to query, empty line to quit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd)

			debouncer := client.NewDebouncer(func(query string) {
				ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
				defer cancel()

				page, err := app.API.ListMedia(ctx, kind, apiclient.MediaListOptions{Search: query})
				if err != nil {
					fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
					return
				}
				fmt.Printf("-- %q --\n", query)
				printPage(page)
			})
			defer debouncer.Stop()

			for {
				fmt.Print("> ")
				var query string
				if _, err := fmt.Scanln(&query); err != nil || query == "" {
					return nil
				}
				debouncer.Update(query)
			}
		},
	}
}

func newGetCommand(kind apiclient.MediaKind) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show item details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()
			asset, err := app.API.GetMedia(ctx, kind, id)
			if err != nil {
				return err
			}

			fmt.Printf("Title:     %s\n", asset.Title)
			fmt.Printf("Category:  %s\n", asset.Category)
			fmt.Printf("Size:      %dx%d\n", asset.Width, asset.Height)
			fmt.Printf("Downloads: %d  Likes: %d  Views: %d\n", asset.Downloads, asset.Likes, asset.Views)
			if len(asset.Tags) > 0 {
				fmt.Printf("Tags:      %v\n", asset.Tags)
			}
			if asset.PreviewURL != "" {
				fmt.Printf("Preview:   %s\n", asset.PreviewURL)
			}
			return nil
		},
	}
}

func newCategoriesCommand(kind apiclient.MediaKind) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := appFrom(cmd)

			ctx, cancel := requestContext(cmd)
			defer cancel()
			categories, err := app.API.MediaCategories(ctx, kind)
			if err != nil {
				return err
			}

			for _, c := range categories {
				fmt.Printf("%-24s %d\n", c.Category, c.Count)
			}
			return nil
		},
	}
}

func newDownloadCommand(kind apiclient.MediaKind) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download the optimized image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("%s-%d.jpg", kind, id)
			}

			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer file.Close()

			ctx, cancel := requestContext(cmd)
			defer cancel()
			if err := app.DownloadMedia(ctx, kind, id, file); err != nil {
				os.Remove(output)
				return err
			}

			fmt.Printf("Saved %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	return cmd
}

func newLikeCommand(kind apiclient.MediaKind) *cobra.Command {
	return &cobra.Command{
		Use:   "like <id>",
		Short: "Like an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()
			likes, err := app.API.LikeMedia(ctx, kind, id)
			if err != nil {
				return err
			}

			fmt.Printf("Likes: %d\n", likes)
			return nil
		},
	}
}

func newUploadCommand(kind apiclient.MediaKind) *cobra.Command {
	var opts apiclient.UploadOptions

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload images (requires login)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			var files []apiclient.UploadFile
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				files = append(files, apiclient.UploadFile{Name: filepath.Base(path), Data: data})
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()
			created, err := app.API.UploadMedia(ctx, kind, opts, files)
			if err != nil {
				return err
			}

			for _, asset := range created {
				fmt.Printf("Uploaded #%d %s\n", asset.ID, asset.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "title for the uploaded images (numbered when uploading several)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description for the uploaded images")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category for the uploaded images")
	cmd.Flags().StringVar(&opts.DeviceType, "device", "", "target device type")
	cmd.Flags().StringSliceVar(&opts.Tags, "tags", nil, "comma-separated tags")
	cmd.Flags().BoolVar(&opts.Featured, "featured", false, "mark the uploads as featured")
	return cmd
}

func printPage(page apiclient.MediaPage) {
	for _, item := range page.Items {
		featured := ""
		if item.Featured {
			featured = " *"
		}
		fmt.Printf("%4d  %-32s %-16s %dx%d  dl=%d likes=%d%s\n",
			item.ID, item.Title, item.Category, item.Width, item.Height, item.Downloads, item.Likes, featured)
	}
	fmt.Printf("page %d/%d, %d items total\n", page.Page, page.TotalPages, page.Total)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

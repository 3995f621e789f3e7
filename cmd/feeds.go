/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"feedrelay/db"

	"github.com/urfave/cli/v2"
)

// feedsCmd lists the registered feeds and their watermarks
func feedsCmd() *cli.Command {
	return &cli.Command{
		Name:        "feeds",
		Usage:       "List the registered feeds",
		Description: `Lists the registered feeds with their class, delivery mode and watermark.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "feedrelay.db",
				Usage:   "SQLite database file to use",
				EnvVars: []string{"FEEDRELAY_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "class",
				Usage:   "Restrict the listing to one feed class",
				EnvVars: []string{"FEEDRELAY_FEED_CLASS"},
			},
		},
		Action: func(ctx *cli.Context) error {
			store, err := db.New(ctx.String("database"))
			if err != nil {
				return err
			}
			defer store.Close()

			feedList, err := store.ListFeeds(ctx.Context, ctx.String("class"))
			if err != nil {
				return err
			}

			for _, feed := range feedList {
				watermark := "never synced"
				if feed.Watermark != nil {
					watermark = feed.Watermark.UTC().Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%s\t%s\t%s\t%s\t%s\n", feed.ID, feed.FeedClass, feed.Mode, watermark, feed.URL)
			}

			return nil
		},
	}
}

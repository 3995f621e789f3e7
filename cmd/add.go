/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"feedrelay/db"
	"feedrelay/models"

	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

// addCmd registers a new feed interactively
func addCmd() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Register a new feed",
		Description: `Registers a new feed in the database.

Asks for the feed details interactively. The new feed starts with an
unset watermark, so the first sync pass treats every article as new.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "feedrelay.db",
				Usage:   "SQLite database file to use",
				EnvVars: []string{"FEEDRELAY_DATABASE"},
			},
		},
		Action: func(ctx *cli.Context) error {
			id, err := prompt.New().Ask("Feed id:").Input("my-feed")
			if err != nil {
				return err
			}

			name, err := prompt.New().Ask("Display name:").Input("My feed")
			if err != nil {
				return err
			}

			url, err := prompt.New().Ask("Feed URL:").Input("https://example.com/feed.xml")
			if err != nil {
				return err
			}

			class, err := prompt.New().Ask("Feed class:").Choose([]string{models.ClassLinkOnly, models.ClassRichEmbed})
			if err != nil {
				return err
			}

			mode, err := prompt.New().Ask("Delivery mode:").Choose([]string{models.ModeDirect, models.ModeThreaded})
			if err != nil {
				return err
			}

			destinationHint := "https://discord.com/api/webhooks/..."
			if mode == models.ModeThreaded {
				destinationHint = "thread id on the parent webhook"
			}
			destination, err := prompt.New().Ask("Destination:").Input(destinationHint)
			if err != nil {
				return err
			}

			notes, err := prompt.New().Ask("Notes:").Input("")
			if err != nil {
				return err
			}

			store, err := db.New(ctx.String("database"))
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.AddFeed(ctx.Context, models.Feed{
				ID:          id,
				Name:        name,
				URL:         url,
				FeedClass:   class,
				Destination: destination,
				Mode:        mode,
				Notes:       notes,
			}); err != nil {
				return fmt.Errorf("could not add feed: %w", err)
			}

			fmt.Println("Added feed", id)
			return nil
		},
	}
}

/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "feedrelay",
		Usage: "Relay new feed articles to Discord webhooks",
		Description: `Polls the registered content feeds, detects articles published
		since each feed's last synchronized watermark and fans them out to
		Discord webhooks. Threaded feeds also get a resized thumbnail of the
		newest illustrated article uploaded to object storage.

		Each sync invocation is one stateless pass; the per-feed watermark
		stored in the SQLite database is the only state between runs.

		Flags can generally be set via environment variables, e.g.:

		--database => FEEDRELAY_DATABASE=feedrelay.db
		--class => FEEDRELAY_FEED_CLASS=link-only
		`,
		Commands: []*cli.Command{
			syncCmd(),
			migrateCmd(),
			rollbackCmd(),
			addCmd(),
			feedsCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

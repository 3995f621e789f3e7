/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"feedrelay/config"
	"feedrelay/dates"
	"feedrelay/db"
	"feedrelay/feeds"
	"feedrelay/images"
	"feedrelay/notify"
	"feedrelay/report"
	"feedrelay/runner"
	"feedrelay/storage"

	"github.com/urfave/cli/v2"
)

func syncCmd() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run one sync pass over the registered feeds",
		Description: `Fetches every registered feed, detects articles published since
the feed's watermark and delivers them to the configured webhooks.

Recoverable failures (a single feed, image or notification) are collected
and posted to the error webhook as one summary; they do not affect the
exit status. Only setup failures exit non-zero.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "feedrelay.db",
				Usage:   "SQLite database file to use",
				EnvVars: []string{"FEEDRELAY_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to policies configuration file",
				EnvVars: []string{"FEEDRELAY_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "class",
				Usage:   "Restrict the pass to one feed class, empty means all",
				EnvVars: []string{"FEEDRELAY_FEED_CLASS"},
			},
			&cli.StringFlag{
				Name:    "parent-webhook-url",
				Usage:   "Shared parent webhook used by threaded feeds",
				EnvVars: []string{"FEEDRELAY_PARENT_WEBHOOK_URL"},
			},
			&cli.StringFlag{
				Name:    "error-webhook-url",
				Usage:   "Operator webhook for the end-of-run failure summary",
				EnvVars: []string{"FEEDRELAY_ERROR_WEBHOOK_URL"},
			},
			&cli.StringFlag{
				Name:     "storage-url",
				Usage:    "Object storage endpoint for illustrations",
				EnvVars:  []string{"FEEDRELAY_STORAGE_URL"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "storage-bucket",
				Usage:    "Object storage bucket for illustrations",
				EnvVars:  []string{"FEEDRELAY_STORAGE_BUCKET"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "storage-key",
				Usage:    "Object storage service key",
				EnvVars:  []string{"FEEDRELAY_STORAGE_KEY"},
				Required: true,
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			normalizer, err := dates.NewNormalizer(cfg.Sync.Timezone)
			if err != nil {
				return err
			}

			store, err := db.New(ctx.String("database"))
			if err != nil {
				return err
			}
			defer store.Close()

			bucket := storage.NewBucket(
				ctx.String("storage-url"),
				ctx.String("storage-bucket"),
				ctx.String("storage-key"),
			)

			errs := report.NewAccumulator()
			webhook := notify.NewWebhook(time.Duration(cfg.Notify.TimeoutSecs) * time.Second)

			r := runner.New(runner.Config{
				Store:       store,
				Source:      feeds.NewClient(30 * time.Second),
				Images:      images.NewPipeline(bucket, cfg.Image.Width, cfg.Image.Folder, cfg.Image.CacheControl),
				Sender:      notify.NewSender(webhook, ctx.String("parent-webhook-url"), cfg.Notify, errs),
				Reporter:    report.NewReporter(ctx.String("error-webhook-url"), webhook),
				Normalizer:  normalizer,
				Errors:      errs,
				FeedClass:   ctx.String("class"),
				Concurrency: cfg.Sync.Concurrency,
			})

			return r.Run(ctx.Context)
		},
	}
}

package notify

import (
	"context"
	"errors"
	"time"

	"feedrelay/config"
	"feedrelay/models"
	"feedrelay/report"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Transport sends one rendered payload to one endpoint.
type Transport interface {
	Send(ctx context.Context, url string, payload any) error
}

// Sender groups pending notification jobs per destination and delivers
// them in paced chunks. Failures are isolated per payload: they land in
// the error log and never abort sibling sends.
type Sender struct {
	transport  Transport
	parentURL  string
	chunkSize  int
	chunkDelay time.Duration
	retryMax   uint64
	retryDelay time.Duration
	errs       *report.Accumulator
}

func NewSender(transport Transport, parentURL string, cfg config.TomlNotify, errs *report.Accumulator) *Sender {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = config.DefaultConfig().Notify.ChunkSize
	}
	return &Sender{
		transport:  transport,
		parentURL:  parentURL,
		chunkSize:  cfg.ChunkSize,
		chunkDelay: time.Duration(cfg.ChunkDelaySecs) * time.Second,
		retryMax:   uint64(cfg.RetryMax),
		retryDelay: time.Duration(cfg.RetryDelaySecs) * time.Second,
		errs:       errs,
	}
}

// Deliver sends all jobs, grouped by destination. Jobs are expected
// oldest first within each feed; grouping keeps that order.
func (s *Sender) Deliver(ctx context.Context, jobs []models.NotificationJob) {
	if len(jobs) == 0 {
		return
	}

	groups := lo.GroupBy(jobs, func(job models.NotificationJob) string {
		return job.Destination
	})

	for destination, group := range groups {
		s.deliverGroup(ctx, destination, group)
	}
}

func (s *Sender) deliverGroup(ctx context.Context, destination string, jobs []models.NotificationJob) {
	log.WithFields(log.Fields{
		"destination": destination,
		"jobs":        len(jobs),
	}).Info("Delivering notification group")

	// One chunk per pacing interval, the first goes out immediately
	limiter := rate.NewLimiter(rate.Every(s.chunkDelay), 1)

	for _, chunk := range lo.Chunk(jobs, s.chunkSize) {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		for _, job := range chunk {
			if err := s.sendJob(ctx, job); err != nil {
				s.errs.Add(destination, "notify", err)
			}
		}
	}
}

func (s *Sender) sendJob(ctx context.Context, job models.NotificationJob) error {
	renderer, err := rendererFor(job.FeedClass)
	if err != nil {
		return err
	}
	router, err := routerFor(job.Mode)
	if err != nil {
		return err
	}

	endpoint := router.Endpoint(s.parentURL, job.Destination)
	payload := renderer.Payload(job)

	operation := func() error {
		err := s.transport.Send(ctx, endpoint, payload)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRateLimited) {
			// Worth waiting out, the retry policy handles it
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), s.retryMax),
		ctx,
	)

	return backoff.Retry(operation, policy)
}

// Package meeting provisions the video-conference link for a booking.
package meeting

import (
	"context"
	"time"

	"go.uber.org/zap"

	"interview-scheduler/internal/metrics"
	"interview-scheduler/internal/model"
)

// Request is everything a provider may need to create a meeting.
type Request struct {
	Booking  model.Booking
	Slot     *model.Slot
	Job      *model.Job
	Employer *model.Employer
}

// Provider is one strategy in the chain.
type Provider interface {
	Name() string
	Provision(ctx context.Context, req Request) (string, error)
}

type Link struct {
	URL      string `json:"url"`
	Provider string `json:"provider"`
}

// Chain tries its strategies in order and falls back to the ad-hoc room.
type Chain struct {
	strategies []Provider
	fallback   *AdHocProvider
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewChain(fallback *AdHocProvider, m *metrics.Metrics, logger *zap.Logger, strategies ...Provider) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{strategies: strategies, fallback: fallback, metrics: m, logger: logger}
}

// Provision always returns a URL. Strategy errors are logged and counted.
func (c *Chain) Provision(ctx context.Context, req Request) Link {
	for _, p := range c.strategies {
		started := time.Now()
		url, err := p.Provision(ctx, req)
		if err == nil && url != "" {
			c.metrics.MeetingLink(p.Name(), "ok")
			c.logger.Info("meeting link provisioned",
				zap.String("booking_id", req.Booking.ID),
				zap.String("provider", p.Name()),
				zap.Duration("took", time.Since(started)),
			)
			return Link{URL: url, Provider: p.Name()}
		}
		c.metrics.MeetingLink(p.Name(), "error")
		c.logger.Warn("meeting provider failed, trying next",
			zap.String("booking_id", req.Booking.ID),
			zap.String("provider", p.Name()),
			zap.Duration("took", time.Since(started)),
			zap.Error(err),
		)
	}

	c.metrics.MeetingLink(c.fallback.Name(), "fallback")
	return Link{URL: c.fallback.Room(req.Booking.ID), Provider: c.fallback.Name()}
}

// Package agent keeps one room connected: it picks a session, runs a
// client until it closes and reconnects after a fixed delay.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TiyaAnlite/FocotServices/io-bilive-chat/client"
	"k8s.io/klog/v2"
)

const (
	DefaultPollInterval   = time.Millisecond * 100
	DefaultReconnectDelay = time.Second * 5
)

type Config struct {
	Client         client.Config
	PollInterval   time.Duration
	ReconnectDelay time.Duration
	// MaxFailures stops the runner after that many failed attempts in a row, 0 retries forever
	MaxFailures int
}

type Runner struct {
	provider   SessionProvider
	dialer     client.Dialer
	cfg        Config
	dispatcher *Dispatcher
	metrics    Metrics
}

func NewRunner(provider SessionProvider, dialer client.Dialer, cfg Config, dispatcher *Dispatcher) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if dispatcher.metrics != nil && cfg.Client.Observer == nil {
		cfg.Client.Observer = dispatcher.metrics
	}
	return &Runner{
		provider:   provider,
		dialer:     dialer,
		cfg:        cfg,
		dispatcher: dispatcher,
		metrics:    dispatcher.metrics,
	}
}

// Run blocks until ctx ends or MaxFailures is reached
func (r *Runner) Run(ctx context.Context) error {
	failures := 0
	for attempt := 0; ; attempt++ {
		connected, err := r.connectOnce(ctx, attempt)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			failures = 0
		} else {
			failures++
			if r.cfg.MaxFailures > 0 && failures >= r.cfg.MaxFailures {
				return fmt.Errorf("agent: giving up after %d failed attempts: %w", failures, err)
			}
		}
		klog.Warningf("connection lost (%v), reconnecting in %s", err, r.cfg.ReconnectDelay)
		timer := time.NewTimer(r.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// connectOnce reports whether the connection came up before it ended
func (r *Runner) connectOnce(ctx context.Context, attempt int) (bool, error) {
	status := r.dispatcher.status
	session, err := r.provider.Provide(ctx, attempt)
	if err != nil {
		status.disconnected(err)
		return false, fmt.Errorf("provide session: %w", err)
	}
	var c *client.Client
	handler := r.dispatcher.Handler()
	onAck := handler.OnHeartbeatAck
	handler.OnHeartbeatAck = func(count uint32) {
		onAck(count)
		if r.metrics != nil {
			r.metrics.SetLiveContext(c.Live().GiftLen(), c.Live().SuperChatLen())
		}
	}
	c, err = client.Connect(ctx, r.dialer, session, r.cfg.Client, handler)
	if err != nil {
		status.disconnected(err)
		return false, err
	}
	status.connected(session)
	if r.metrics != nil {
		r.metrics.SetConnected(true)
	}
	err = c.Run(ctx, r.cfg.PollInterval)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	status.disconnected(err)
	if r.metrics != nil {
		r.metrics.SetConnected(false)
	}
	return true, err
}

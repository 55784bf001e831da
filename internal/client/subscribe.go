package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval matches the refresh rate of the mobile client
const DefaultPollInterval = 4 * time.Second

// Subscriber delivers the full current list on every change. The returned
// function stops the subscription; it is idempotent, and once it returns
// onUpdate is not called again. It must not be called from inside onUpdate.
type Subscriber interface {
	Subscribe(onUpdate func([]models.FoundItem)) (unsubscribe func())
}

// subscription is the teardown handshake shared by all subscribers
type subscription struct {
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	stopped bool
	once    sync.Once
}

func newSubscription() *subscription {
	ctx, cancel := context.WithCancel(context.Background())
	return &subscription{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// deliver runs onUpdate unless the subscription has been stopped
func (s *subscription) deliver(onUpdate func([]models.FoundItem), items []models.FoundItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	onUpdate(items)
}

func (s *subscription) unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		<-s.done
	})
}

// refresh lists once and delivers the result; failures are logged and skipped
func refresh(s *subscription, remote Remote, filter models.ItemFilter, onUpdate func([]models.FoundItem)) {
	items, err := remote.List(s.ctx, filter)
	if err != nil {
		if s.ctx.Err() == nil {
			log.Warn().Err(err).Msg("Failed to refresh found items")
		}
		return
	}
	s.deliver(onUpdate, items)
}

// Poller emulates push updates by listing on a fixed interval
type Poller struct {
	remote   Remote
	interval time.Duration
	filter   models.ItemFilter
}

// NewPoller creates a polling subscriber; interval <= 0 uses DefaultPollInterval
func NewPoller(remote Remote, interval time.Duration, filter models.ItemFilter) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{remote: remote, interval: interval, filter: filter}
}

// Subscribe delivers a snapshot immediately and then once per interval
func (p *Poller) Subscribe(onUpdate func([]models.FoundItem)) func() {
	s := newSubscription()
	go func() {
		defer close(s.done)
		poll(s, p.remote, p.filter, p.interval, onUpdate)
	}()
	return s.unsubscribe
}

func poll(s *subscription, remote Remote, filter models.ItemFilter, interval time.Duration, onUpdate func([]models.FoundItem)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		refresh(s, remote, filter, onUpdate)
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// EventSource streams change notifications until ctx ends.
// services.RabbitMQConsumer implements it.
type EventSource interface {
	Consume(ctx context.Context, handler func(models.ItemEvent)) error
}

// PushSubscriber re-lists whenever the event source reports a change, so
// every delivery is still a full snapshot. Bursts of events collapse into one
// refresh. If the event stream fails the subscriber falls back to polling.
type PushSubscriber struct {
	remote   Remote
	source   EventSource
	filter   models.ItemFilter
	fallback time.Duration
}

// NewPushSubscriber creates a push subscriber; fallback is the polling
// interval used if the event stream breaks.
func NewPushSubscriber(remote Remote, source EventSource, filter models.ItemFilter, fallback time.Duration) *PushSubscriber {
	if fallback <= 0 {
		fallback = DefaultPollInterval
	}
	return &PushSubscriber{remote: remote, source: source, filter: filter, fallback: fallback}
}

func (p *PushSubscriber) Subscribe(onUpdate func([]models.FoundItem)) func() {
	s := newSubscription()
	changed := make(chan struct{}, 1)
	streamErr := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		streamErr <- p.source.Consume(s.ctx, func(models.ItemEvent) {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	go func() {
		defer close(s.done)
		defer wg.Wait()

		refresh(s, p.remote, p.filter, onUpdate)
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-changed:
				refresh(s, p.remote, p.filter, onUpdate)
			case err := <-streamErr:
				if s.ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				log.Warn().Err(err).Dur("interval", p.fallback).Msg("Item event stream failed, falling back to polling")
				poll(s, p.remote, p.filter, p.fallback, onUpdate)
				return
			}
		}
	}()

	return s.unsubscribe
}

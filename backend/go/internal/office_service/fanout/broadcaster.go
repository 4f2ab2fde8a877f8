package fanout

import (
	"AgentOffice/backend/go/internal/metrics"
	"AgentOffice/backend/go/internal/models"
	"AgentOffice/backend/go/pkg/logger"
	"context"
	"time"
)

const (
	sinkQueueSize   = 256
	sinkCallTimeout = 5 * time.Second
)

// Sink receives a copy of every broadcast event, e.g. the Kafka publisher.
type Sink interface {
	Publish(ctx context.Context, event models.Event) error
}

// Broadcaster is the single entry point for dashboard events. Delivery to the
// hub is synchronous; sinks are fed from a queue drained by Run.
type Broadcaster struct {
	hub     *Hub
	sinks   []Sink
	queue   chan models.Event
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewBroadcaster(hub *Hub, log *logger.Logger, m *metrics.Metrics, sinks ...Sink) *Broadcaster {
	if log == nil {
		log = logger.Discard()
	}
	b := &Broadcaster{hub: hub, sinks: sinks, log: log.Named("broadcaster"), metrics: m}
	if len(sinks) > 0 {
		b.queue = make(chan models.Event, sinkQueueSize)
	}
	return b
}

// Hub returns the client set.
func (b *Broadcaster) Hub() *Hub {
	return b.hub
}

// Broadcast never fails; delivery problems are logged.
func (b *Broadcaster) Broadcast(e models.Event) {
	b.metrics.Event(string(e.Type))
	if b.hub != nil {
		b.hub.Broadcast(e)
	}
	if b.queue == nil {
		return
	}
	select {
	case b.queue <- e:
	default:
		b.log.WithField("type", e.Type).Warn("sink queue full, event dropped")
	}
}

// Run forwards queued events to the sinks until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.queue == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-b.queue:
			for _, s := range b.sinks {
				callCtx, cancel := context.WithTimeout(ctx, sinkCallTimeout)
				if err := s.Publish(callCtx, e); err != nil {
					b.log.WithErr(err).WithField("type", e.Type).Warn("event sink failed")
				}
				cancel()
			}
		}
	}
}

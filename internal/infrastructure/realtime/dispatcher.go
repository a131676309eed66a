package realtime

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pairchat/pairchat/internal/api/metrics"
	"github.com/pairchat/pairchat/internal/core/domain"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Deliverer receives events in per-conversation order.
type Deliverer interface {
	Deliver(event domain.Event)
}

// Dispatcher routes events to a fixed set of workers using consistent hashing
// on the conversation key, guaranteeing per-conversation ordering.
type Dispatcher struct {
	workers []chan domain.Event
	sink    Deliverer
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sink Deliverer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.Event, numWorkers),
		sink:    sink,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.Event, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Publish implements ports.EventPublisher. It never blocks: when the
// conversation's worker is saturated the event is dropped.
func (d *Dispatcher) Publish(event domain.Event) {
	idx := d.shardIndex(event.ConversationKey())
	select {
	case d.workers[idx] <- event:
		metrics.RealtimeQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.RealtimeDroppedTotal.WithLabelValues("queue_full").Inc()
		d.log.Warn().Str("event", string(event.Type)).Int("worker_id", idx).Msg("dispatcher queue full, dropping event")
	}
}

// shardIndex maps a conversation key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.Event) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			d.sink.Deliver(event)
			metrics.RealtimeEventsTotal.WithLabelValues(string(event.Type)).Inc()
			metrics.RealtimeQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		}
	}
}

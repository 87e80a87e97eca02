package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer used by the forwarder.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a writer for topic on the given brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

type wireEvent struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Forwarder copies bus events onto a Kafka topic so other processes can consume them.
// Events are queued and written from a single goroutine; a full queue drops the event.
type Forwarder struct {
	bus    *Bus
	writer MessageWriter
	logger *zap.Logger
	names  map[string]struct{}

	mu     sync.RWMutex
	closed bool
	queue  chan wireEvent
	subID  SubscriptionID
	wg     sync.WaitGroup
	once   sync.Once
}

// NewForwarder forwards the named events, or all events when names is empty.
func NewForwarder(bus *Bus, w MessageWriter, logger *zap.Logger, names ...string) *Forwarder {
	f := &Forwarder{
		bus:    bus,
		writer: w,
		logger: logger,
		queue:  make(chan wireEvent, 256),
	}
	if len(names) > 0 {
		f.names = make(map[string]struct{}, len(names))
		for _, n := range names {
			f.names[n] = struct{}{}
		}
	}
	return f
}

func (f *Forwarder) Start() {
	f.subID = f.bus.SubscribeAll(f.enqueue)
	f.wg.Add(1)
	go f.run()
}

// Stop unsubscribes, drains the queue, and closes the writer.
func (f *Forwarder) Stop() error {
	var err error
	f.once.Do(func() {
		f.bus.Unsubscribe("", f.subID)
		f.mu.Lock()
		f.closed = true
		close(f.queue)
		f.mu.Unlock()
		f.wg.Wait()
		err = f.writer.Close()
	})
	return err
}

func (f *Forwarder) enqueue(evt Event) {
	if f.names != nil {
		if _, ok := f.names[evt.Name]; !ok {
			return
		}
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- wireEvent{Name: evt.Name, Timestamp: evt.Timestamp, Payload: evt.Payload}:
	default:
		f.logger.Warn("kafka forwarder queue full, dropping event", zap.String("event", evt.Name))
	}
}

func (f *Forwarder) run() {
	defer f.wg.Done()
	for evt := range f.queue {
		data, err := json.Marshal(evt)
		if err != nil {
			f.logger.Error("marshal event", zap.String("event", evt.Name), zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = f.writer.WriteMessages(ctx, kafka.Message{Key: []byte(evt.Name), Value: data})
		cancel()
		if err != nil {
			f.logger.Error("kafka publish", zap.String("event", evt.Name), zap.Error(err))
		}
	}
}

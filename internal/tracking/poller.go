package tracking

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"groceryDelivery/internal/events"
	"groceryDelivery/internal/metrics"
)

const (
	DefaultPollInterval = 5 * time.Second
	MinPollInterval     = 2 * time.Second
	MaxPollInterval     = 30 * time.Second
)

// ActiveSource lists the deliveries currently in progress with fresh estimates.
type ActiveSource interface {
	ActiveUpdates(ctx context.Context) ([]Update, error)
}

// StatsFunc produces the dashboard snapshot published once per tick.
type StatsFunc func(ctx context.Context) (any, error)

// ClampInterval keeps a configured poll period inside the allowed range.
func ClampInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultPollInterval
	case d < MinPollInterval:
		return MinPollInterval
	case d > MaxPollInterval:
		return MaxPollInterval
	}
	return d
}

// Poller periodically re-estimates active deliveries and pushes the results on the bus.
type Poller struct {
	source   ActiveSource
	stats    StatsFunc
	bus      *events.Bus
	metrics  *metrics.Metrics
	logger   *zap.Logger
	interval time.Duration

	mu       sync.Mutex
	updates  uint64
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewPoller(source ActiveSource, stats StatsFunc, bus *events.Bus, interval time.Duration, logger *zap.Logger, m *metrics.Metrics) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		source:   source,
		stats:    stats,
		bus:      bus,
		metrics:  m,
		logger:   logger,
		interval: ClampInterval(interval),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Updates reports how many ticks have run.
func (p *Poller) Updates() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updates
}

func (p *Poller) Start() {
	go p.run()
}

// Stop ends the loop and waits for an in-flight tick to finish. Safe to call twice.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	<-p.done
}

func (p *Poller) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()
	start := time.Now()

	updates, err := p.source.ActiveUpdates(ctx)
	if err != nil {
		p.logger.Warn("poller: active deliveries", zap.Error(err))
	}
	for _, u := range updates {
		p.bus.Publish(events.Tracking, u)
	}

	if p.stats != nil {
		snapshot, serr := p.stats(ctx)
		if serr != nil {
			p.logger.Warn("poller: stats", zap.Error(serr))
			if err == nil {
				err = serr
			}
		} else {
			p.bus.Publish(events.StatsUpdate, snapshot)
		}
	}

	p.mu.Lock()
	p.updates++
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.ObservePoll(time.Since(start), err)
	}
	p.logger.Debug("poller: tick", zap.Int("active", len(updates)), zap.Duration("elapsed", time.Since(start)))
}

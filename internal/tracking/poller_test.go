package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"groceryDelivery/internal/events"
	"groceryDelivery/internal/metrics"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   int
	updates []Update
	err     error
}

func (f *fakeSource) ActiveUpdates(ctx context.Context) ([]Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.updates, f.err
}

func TestClampInterval(t *testing.T) {
	cases := map[time.Duration]time.Duration{
		0:                DefaultPollInterval,
		time.Second:      MinPollInterval,
		10 * time.Second: 10 * time.Second,
		time.Minute:      MaxPollInterval,
	}
	for in, want := range cases {
		if got := ClampInterval(in); got != want {
			t.Errorf("ClampInterval(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestPoll_PublishesTrackingAndStats(t *testing.T) {
	bus := events.NewBus()
	src := &fakeSource{updates: []Update{{OrderID: 1}, {OrderID: 2}}}
	stats := func(ctx context.Context) (any, error) { return map[string]int{"active": 2}, nil }
	m := metrics.New()
	p := NewPoller(src, stats, bus, 0, nil, m)

	var tracked []int64
	var statsSeen int
	bus.Subscribe(events.Tracking, func(e events.Event) {
		tracked = append(tracked, e.Payload.(Update).OrderID)
	})
	bus.Subscribe(events.StatsUpdate, func(e events.Event) { statsSeen++ })

	p.poll()

	if len(tracked) != 2 || tracked[0] != 1 || tracked[1] != 2 {
		t.Fatalf("tracked = %v", tracked)
	}
	if statsSeen != 1 {
		t.Fatalf("stats events = %d, want 1", statsSeen)
	}
	if p.Updates() != 1 {
		t.Fatalf("updates = %d", p.Updates())
	}
}

func TestPoll_EventsCountedOnceThroughBusHook(t *testing.T) {
	bus := events.NewBus()
	m := metrics.New()
	bus.SubscribeAll(func(e events.Event) { m.ObserveEvent(e.Name) })
	stats := func(ctx context.Context) (any, error) { return map[string]int{"active": 1}, nil }
	p := NewPoller(&fakeSource{updates: []Update{{OrderID: 7}}}, stats, bus, 0, nil, m)

	p.poll()

	if got := promtest.ToFloat64(m.EventsPublished.WithLabelValues(events.Tracking)); got != 1 {
		t.Fatalf("tracking events counted = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.EventsPublished.WithLabelValues(events.StatsUpdate)); got != 1 {
		t.Fatalf("stats events counted = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.PollTicks.WithLabelValues("ok")); got != 1 {
		t.Fatalf("ok ticks = %v, want 1", got)
	}
}

func TestPoll_SourceErrorStillCountsTick(t *testing.T) {
	bus := events.NewBus()
	src := &fakeSource{err: errors.New("db down")}
	p := NewPoller(src, nil, bus, 0, nil, nil)

	var got int
	bus.SubscribeAll(func(e events.Event) { got++ })
	p.poll()

	if got != 0 {
		t.Fatalf("expected no events on error, got %d", got)
	}
	if p.Updates() != 1 {
		t.Fatalf("updates = %d, want 1", p.Updates())
	}
}

func TestPoller_StartStop(t *testing.T) {
	src := &fakeSource{}
	p := NewPoller(src, nil, events.NewBus(), MinPollInterval, nil, nil)
	p.Start()
	p.Stop()
	p.Stop()
	if p.Interval() != MinPollInterval {
		t.Fatalf("interval = %v", p.Interval())
	}
}

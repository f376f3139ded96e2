// Package selection discovers viewer selections and republishes them as
// normalized outward messages. Discovery is best-effort: the exact event,
// property, and method surface of the selection capability is not guaranteed
// stable, so the bridge probes a declarative table of plausible names and
// keeps a polling safety net.
package selection

import (
	"context"
	"log"
	"reflect"
	"sync"
	"time"

	"speckle-viewer-bridge/internal/contracts"
)

// DefaultPollInterval is the safety-net poll cadence.
const DefaultPollInterval = 750 * time.Millisecond

// Source is the selection surface of the viewer engine.
type Source interface {
	// Get reads a named property; ok is false when the property is unknown
	// or empty.
	Get(property string) (any, bool)
	// Call invokes a named method; unknown methods return an error.
	Call(method string, args ...any) (any, error)
	// Subscribe registers a listener for a named event, reporting whether
	// the source actually fires it.
	Subscribe(event string, fn func(any)) bool
}

// Probe is one read strategy against the selection surface.
type Probe struct {
	Name string
	Read func(Source) (any, bool)
}

func propertyProbe(name string) Probe {
	return Probe{Name: "property:" + name, Read: func(s Source) (any, bool) {
		return s.Get(name)
	}}
}

func methodProbe(name string) Probe {
	return Probe{Name: "method:" + name, Read: func(s Source) (any, bool) {
		v, err := s.Call(name)
		if err != nil || v == nil {
			return nil, false
		}
		return v, true
	}}
}

// EventNames are the subscription names tried in priority order.
var EventNames = []string{"selection-changed", "object-selected", "select", "pick"}

// ReadProbes are the read strategies tried in priority order; the first one
// yielding a non-empty result wins.
var ReadProbes = []Probe{
	propertyProbe("selectedObjects"),
	propertyProbe("selection"),
	propertyProbe("selected"),
	methodProbe("getSelection"),
	methodProbe("getSelectedObjects"),
	methodProbe("getCurrentSelection"),
}

// Bridge observes selections through events, polling, and click hit-testing,
// and forwards normalized results to the host.
type Bridge struct {
	src      Source
	host     contracts.HostPublisher
	interval time.Duration

	mu   sync.Mutex
	last any
}

// New creates a selection bridge. A non-positive interval uses the default.
func New(src Source, host contracts.HostPublisher, interval time.Duration) *Bridge {
	if host == nil {
		host = contracts.NopPublisher{}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Bridge{src: src, host: host, interval: interval}
}

// Start subscribes to the first native selection event the source admits to
// firing and runs the comparison-based poll until ctx is done.
func (b *Bridge) Start(ctx context.Context) {
	if b.src == nil {
		return
	}

	for _, event := range EventNames {
		if b.src.Subscribe(event, b.observe) {
			log.Printf("[speckle-viewer-bridge] selection events via %q", event)
			break
		}
	}

	go b.poll(ctx)
}

// poll compares the current selection against the last observed payload and
// fires a synthetic change when they differ, independent of native events.
func (b *Bridge) poll(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if payload, ok := b.readCurrent(); ok {
				b.observe(payload)
			}
		}
	}
}

// readCurrent runs the probe table and returns the first non-empty result.
func (b *Bridge) readCurrent() (any, bool) {
	for _, probe := range ReadProbes {
		if payload, ok := probe.Read(b.src); ok && payload != nil {
			return payload, true
		}
	}
	return nil, false
}

// HandleClick resolves a pointer click to an object via an ordered sequence
// of hit-test call shapes, falling back to re-reading the current selection.
func (b *Bridge) HandleClick(x, y, pageX, pageY float64) {
	attempts := [][]any{
		{x, y},
		{pageX, pageY},
		{map[string]any{"x": x, "y": y}},
	}
	for _, args := range attempts {
		result, err := b.src.Call("hitTest", args...)
		if err != nil {
			continue
		}
		if result != nil {
			b.observe(result)
			return
		}
	}

	if payload, ok := b.readCurrent(); ok {
		b.observe(payload)
	}
}

// observe dedupes a raw payload against the last one by deep equality and
// forwards new selections outward.
func (b *Bridge) observe(payload any) {
	if payload == nil {
		return
	}

	b.mu.Lock()
	if reflect.DeepEqual(payload, b.last) {
		b.mu.Unlock()
		return
	}
	b.last = payload
	b.mu.Unlock()

	event := Extract(payload)
	b.host.Publish(contracts.NewObjectSelected(event.Identifier, event.DisplayName, event.RawObjectID))
}

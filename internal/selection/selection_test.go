package selection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"speckle-viewer-bridge/internal/contracts"
)

type fakeSource struct {
	mu sync.Mutex

	properties map[string]any
	methods    map[string]any
	events     map[string]bool
	hitTest    func(args []any) (any, error)

	subscribed []string
	handlers   []func(any)
}

func (f *fakeSource) Get(property string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.properties[property]
	return v, ok
}

func (f *fakeSource) Call(method string, args ...any) (any, error) {
	if method == "hitTest" {
		if f.hitTest == nil {
			return nil, errors.New("no hit testing")
		}
		return f.hitTest(args)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.methods[method]
	if !ok {
		return nil, errors.New("unknown method")
	}
	return v, nil
}

func (f *fakeSource) Subscribe(event string, fn func(any)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, event)
	if f.events[event] {
		f.handlers = append(f.handlers, fn)
		return true
	}
	return false
}

func (f *fakeSource) setSelection(v any) {
	f.mu.Lock()
	if f.properties == nil {
		f.properties = map[string]any{}
	}
	f.properties["selectedObjects"] = v
	f.mu.Unlock()
}

type capture struct {
	mu       sync.Mutex
	selected []contracts.ObjectSelectedMessage
}

func (c *capture) Publish(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := v.(contracts.ObjectSelectedMessage); ok {
		c.selected = append(c.selected, m)
	}
}

func (c *capture) all() []contracts.ObjectSelectedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]contracts.ObjectSelectedMessage(nil), c.selected...)
}

func TestExtractPrefersNestedGlobalIDOverName(t *testing.T) {
	t.Parallel()

	event := Extract(map[string]any{
		"id": "node-7",
		"rawData": map[string]any{
			"GlobalId": "ABC123",
			"Name":     "Wall-01",
		},
	})
	require.Equal(t, "ABC123", event.Identifier)
	require.Equal(t, "Wall-01", event.DisplayName)
	require.Equal(t, "node-7", event.RawObjectID)
}

func TestExtractChainOrder(t *testing.T) {
	t.Parallel()

	// Nested fields beat top-level fields of higher chain priority.
	event := Extract(map[string]any{
		"GlobalId": "TOP-GUID",
		"rawData":  map[string]any{"Tag": "T-99"},
	})
	require.Equal(t, "T-99", event.Identifier)

	// Without raw data the top-level chain applies.
	event = Extract(map[string]any{"ObjectType": "IfcWall", "Name": "Wall-02"})
	require.Equal(t, "Wall-02", event.Identifier)
	require.Equal(t, "Wall-02", event.DisplayName)
}

func TestExtractObjectIDFallback(t *testing.T) {
	t.Parallel()

	event := Extract(map[string]any{"id": "0123456789abcdef"})
	require.Equal(t, "0123456789abcdef", event.Identifier)

	// Short ids are not real identifiers.
	event = Extract(map[string]any{"id": "short"})
	require.Empty(t, event.Identifier)
	require.Equal(t, "short", event.RawObjectID)
}

func TestExtractListPayloadUsesFirstObject(t *testing.T) {
	t.Parallel()

	event := Extract([]any{
		map[string]any{"GlobalId": "FIRST12345"},
		map[string]any{"GlobalId": "SECOND12345"},
	})
	require.Equal(t, "FIRST12345", event.Identifier)
}

func TestExtractGarbageIsEmpty(t *testing.T) {
	t.Parallel()

	require.Equal(t, Event{}, Extract(nil))
	require.Equal(t, Event{}, Extract(42))
	require.Equal(t, Event{}, Extract([]any{}))
	require.Equal(t, Event{DisplayName: "Object"}, Extract(map[string]any{}))
}

func TestReadProbeOrder(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		properties: map[string]any{"selection": map[string]any{"id": "from-property"}},
		methods:    map[string]any{"getSelection": map[string]any{"id": "from-method"}},
	}
	b := New(src, &capture{}, 0)

	payload, ok := b.readCurrent()
	require.True(t, ok)
	require.Equal(t, map[string]any{"id": "from-property"}, payload)

	// With no properties available, the method probes take over.
	src.properties = nil
	payload, ok = b.readCurrent()
	require.True(t, ok)
	require.Equal(t, map[string]any{"id": "from-method"}, payload)
}

func TestObserveDedupsByDeepEquality(t *testing.T) {
	t.Parallel()

	out := &capture{}
	b := New(&fakeSource{}, out, 0)

	payload := map[string]any{"GlobalId": "ABC1234567"}
	b.observe(payload)
	b.observe(map[string]any{"GlobalId": "ABC1234567"})
	require.Len(t, out.all(), 1)

	b.observe(map[string]any{"GlobalId": "XYZ7654321"})
	require.Len(t, out.all(), 2)
}

func TestStartSubscribesFirstAdmittedEvent(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{events: map[string]bool{"object-selected": true, "pick": true}}
	out := &capture{}
	b := New(src, out, time.Hour)
	b.Start(ctx)

	// Probing stops at the first event the source admits to firing.
	require.Equal(t, []string{"selection-changed", "object-selected"}, src.subscribed)

	src.mu.Lock()
	handler := src.handlers[0]
	src.mu.Unlock()
	handler(map[string]any{"GlobalId": "EVENT-GUID1"})

	msgs := out.all()
	require.Len(t, msgs, 1)
	require.Equal(t, "EVENT-GUID1", msgs[0].Identifier)
}

func TestPollFiresOnChangeOnly(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{}
	src.setSelection(map[string]any{"GlobalId": "POLL-GUID-1"})
	out := &capture{}
	b := New(src, out, 5*time.Millisecond)
	b.Start(ctx)

	require.Eventually(t, func() bool {
		return len(out.all()) == 1
	}, time.Second, 5*time.Millisecond)

	// Unchanged selection stays silent.
	time.Sleep(50 * time.Millisecond)
	require.Len(t, out.all(), 1)

	src.setSelection(map[string]any{"GlobalId": "POLL-GUID-2"})
	require.Eventually(t, func() bool {
		return len(out.all()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestHandleClickTriesArgumentShapesInOrder(t *testing.T) {
	t.Parallel()

	var shapes [][]any
	src := &fakeSource{hitTest: func(args []any) (any, error) {
		shapes = append(shapes, args)
		if len(shapes) < 2 {
			return nil, errors.New("bad arguments")
		}
		return map[string]any{"GlobalId": "CLICK-GUID1"}, nil
	}}
	out := &capture{}
	b := New(src, out, 0)

	b.HandleClick(10, 20, 110, 220)

	require.Equal(t, [][]any{{10.0, 20.0}, {110.0, 220.0}}, shapes)
	msgs := out.all()
	require.Len(t, msgs, 1)
	require.Equal(t, "CLICK-GUID1", msgs[0].Identifier)
}

func TestHandleClickFallsBackToSelectionRead(t *testing.T) {
	t.Parallel()

	src := &fakeSource{hitTest: func([]any) (any, error) {
		return nil, errors.New("unsupported")
	}}
	src.setSelection(map[string]any{"GlobalId": "FALLBACK123"})
	out := &capture{}
	b := New(src, out, 0)

	b.HandleClick(1, 2, 3, 4)

	msgs := out.all()
	require.Len(t, msgs, 1)
	require.Equal(t, "FALLBACK123", msgs[0].Identifier)
}

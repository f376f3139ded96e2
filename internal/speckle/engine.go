package speckle

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"speckle-viewer-bridge/internal/scene"
)

// maxObjectDepth bounds the child walk when building the world tree.
const maxObjectDepth = 10

// meshType marks geometry payloads, which carry no identity of their own.
const meshType = "Objects.Geometry.Mesh"

// filterEntry is one keyed filtering state.
type filterEntry struct {
	hidden  []string
	ghosted bool
}

// Engine is the in-process viewer capability: it resolves and loads Speckle
// objects into a world tree and maintains filtering and selection state.
// Bridges consume it through their own narrow interfaces.
type Engine struct {
	client *Client

	mu        sync.Mutex
	root      *scene.Node
	filters   map[string]filterEntry
	selection map[string]any
	listeners map[string][]func(any)
}

// NewEngine creates an initialized engine backed by one Speckle server.
func NewEngine(server, token string) *Engine {
	return &Engine{
		client:    NewClient(server, token),
		root:      &scene.Node{ObjectID: "world"},
		filters:   make(map[string]filterEntry),
		listeners: make(map[string][]func(any)),
	}
}

// Initialized reports whether the engine can accept loads.
func (e *Engine) Initialized() bool {
	return e != nil && e.client != nil
}

// FilteringInitialized reports whether isolate/reset operations can run.
func (e *Engine) FilteringInitialized() bool {
	return e.Initialized()
}

// Resolve expands a model URL into object resource URLs.
func (e *Engine) Resolve(ctx context.Context, url string) ([]string, error) {
	return e.client.Resolve(ctx, url)
}

// Load downloads one object resource and attaches its tree to the world root.
func (e *Engine) Load(ctx context.Context, resourceURL string) error {
	raw, err := e.client.fetchObject(ctx, resourceURL)
	if err != nil {
		return err
	}

	node := buildNode(raw, 0)
	if node == nil {
		return fmt.Errorf("load %s: object has no usable payload", resourceURL)
	}

	e.mu.Lock()
	e.root.Children = append(e.root.Children, node)
	e.mu.Unlock()
	return nil
}

// ClearScene drops all loaded content and filtering state.
func (e *Engine) ClearScene() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.root = &scene.Node{ObjectID: "world"}
	e.filters = make(map[string]filterEntry)
	e.selection = nil
	return nil
}

// WorldTree returns a snapshot of the current scene root. The child list is
// copied under the lock so a concurrent load's append cannot race a caller's
// walk; attached subtrees are never mutated after load, so sharing them is
// safe.
func (e *Engine) WorldTree() *scene.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &scene.Node{
		ObjectID: e.root.ObjectID,
		Raw:      e.root.Raw,
		Children: append([]*scene.Node(nil), e.root.Children...),
	}
}

// Isolate makes the given object set (plus descendants when asked) the sole
// fully-visible set, hiding or ghosting everything else. States are keyed:
// re-isolating under the same key overwrites rather than stacks.
func (e *Engine) Isolate(ids []string, key string, includeDescendants, ghostOthers bool) (scene.FilterState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	visible := make(map[string]bool, len(ids))
	for _, id := range ids {
		visible[id] = true
		if !includeDescendants {
			continue
		}
		if n := scene.Find(e.root, id); n != nil {
			for _, d := range scene.Descendants(n) {
				visible[d] = true
			}
		}
	}

	var hidden []string
	scene.Walk(e.root, func(n *scene.Node) bool {
		if n == e.root {
			return true
		}
		if !visible[n.ObjectID] {
			hidden = append(hidden, n.ObjectID)
		}
		return true
	})

	e.filters[key] = filterEntry{hidden: hidden, ghosted: ghostOthers}
	return scene.FilterState{HiddenCount: len(hidden)}, nil
}

// ResetFilters drops every keyed filtering state.
func (e *Engine) ResetFilters() (scene.FilterState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters = make(map[string]filterEntry)
	return scene.FilterState{HiddenCount: 0}, nil
}

// SetSelection records the current selection payload and notifies any event
// listeners registered through Subscribe.
func (e *Engine) SetSelection(payload map[string]any) {
	e.mu.Lock()
	e.selection = payload
	var fns []func(any)
	for _, l := range e.listeners {
		fns = append(fns, l...)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}

// Get exposes selection state under a few plausible property names. The exact
// surface is intentionally loose; the selection bridge probes it.
func (e *Engine) Get(property string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch property {
	case "selectedObjects", "selection", "selected":
		if e.selection == nil {
			return nil, false
		}
		return e.selection, true
	}
	return nil, false
}

// Call exposes selection reads and hit testing under a few plausible method
// names. Unknown methods return an error so probing can continue.
func (e *Engine) Call(method string, args ...any) (any, error) {
	switch method {
	case "getSelection", "getSelectedObjects", "getCurrentSelection":
		if v, ok := e.Get("selection"); ok {
			return v, nil
		}
		return nil, nil
	case "hitTest":
		return e.hitTest(args)
	}
	return nil, fmt.Errorf("unknown method %q", method)
}

// Subscribe registers a listener for a selection event name. Only the names
// the engine actually fires return true.
func (e *Engine) Subscribe(event string, fn func(any)) bool {
	switch event {
	case "selection-changed", "object-selected":
	default:
		return false
	}
	e.mu.Lock()
	e.listeners[event] = append(e.listeners[event], fn)
	e.mu.Unlock()
	return true
}

// hitTest resolves a pointer position to the current selection payload. The
// in-process engine keeps no projected geometry, so coordinates only gate the
// call shape; the pick itself is whatever the page last selected.
func (e *Engine) hitTest(args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("hitTest: missing coordinates")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selection == nil {
		return nil, nil
	}
	return e.selection, nil
}

// buildNode converts one raw object payload into a world-tree node. Children
// come from the "elements" collection first, then from any other list-valued
// field holding object-shaped entries. Geometry meshes are skipped: they carry
// no identity and only inflate the tree.
func buildNode(raw map[string]any, depth int) *scene.Node {
	if raw == nil || depth > maxObjectDepth {
		return nil
	}
	if t, ok := raw["speckle_type"].(string); ok && t == meshType {
		return nil
	}

	id, _ := raw["id"].(string)
	node := &scene.Node{ObjectID: id, Raw: raw}

	seen := make(map[string]bool)
	for _, field := range childFields(raw) {
		list, ok := raw[field].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			childRaw, ok := item.(map[string]any)
			if !ok {
				continue
			}
			child := buildNode(childRaw, depth+1)
			if child == nil {
				continue
			}
			if child.ObjectID != "" && seen[child.ObjectID] {
				continue
			}
			seen[child.ObjectID] = true
			node.Children = append(node.Children, child)
		}
	}
	return node
}

// childFields returns the payload's list-valued field names with the elements
// collections first, remaining fields in stable name order.
func childFields(raw map[string]any) []string {
	fields := []string{"elements", "@elements"}
	var rest []string
	for name, value := range raw {
		if name == "elements" || name == "@elements" {
			continue
		}
		if _, ok := value.([]any); ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(fields, rest...)
}

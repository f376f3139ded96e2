// Package loader owns the model-load lifecycle: one state machine per viewer
// instance, URL dedup, sequential resource loading, and deferred filters.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"speckle-viewer-bridge/internal/contracts"
)

// State is the load lifecycle state of the single embedded viewer.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateError   State = "error"
)

// ErrNotInitialized means the viewer engine is missing or not ready.
var ErrNotInitialized = errors.New("viewer engine not initialized")

// ErrNoResourcesFound means the model URL resolved to zero resources.
var ErrNoResourcesFound = errors.New("no resources found for model URL")

// ResourceLoadError wraps a failure loading one resolved resource.
type ResourceLoadError struct {
	URL string
	Err error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("load resource %s: %v", e.URL, e.Err)
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }

// Engine is the loading surface the coordinator drives.
type Engine interface {
	Initialized() bool
	Resolve(ctx context.Context, url string) ([]string, error)
	ClearScene() error
	Load(ctx context.Context, resource string) error
}

// FilterApplier receives the deferred filter once a load completes.
type FilterApplier interface {
	ApplyByIdentifier(id string)
}

// Snapshot is a read-only projection of the coordinator state.
type Snapshot struct {
	State      State
	ModelURL   string
	LastError  string
	HasPending bool
}

// Coordinator serializes model loads and defers filters issued mid-load. All
// lifecycle state lives here and is only mutated through its methods.
type Coordinator struct {
	engine  Engine
	filters FilterApplier
	host    contracts.HostPublisher
	page    contracts.PageStatusSink

	mu            sync.Mutex
	state         State
	currentURL    string
	lastError     string
	pendingFilter string
	hasPending    bool

	// generation stamps each accepted load; completions from a superseded
	// generation are discarded so stale callbacks cannot clobber state.
	generation uint64
}

// New creates an idle coordinator. Publisher and sink default to no-ops.
func New(engine Engine, filters FilterApplier, host contracts.HostPublisher, page contracts.PageStatusSink) *Coordinator {
	if host == nil {
		host = contracts.NopPublisher{}
	}
	if page == nil {
		page = contracts.NopPublisher{}
	}
	return &Coordinator{
		engine:  engine,
		filters: filters,
		host:    host,
		page:    page,
		state:   StateIdle,
	}
}

// Snapshot returns the current lifecycle state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:      c.state,
		ModelURL:   c.currentURL,
		LastError:  c.lastError,
		HasPending: c.hasPending,
	}
}

// RequestLoad loads a model URL into the viewer. An empty URL is the no-model
// state, not an error. Requests for the already-loaded URL are no-ops unless
// the last attempt failed. Resources are loaded sequentially; the first
// failure aborts the rest and leaves earlier content in place.
func (c *Coordinator) RequestLoad(ctx context.Context, url string) (err error) {
	if c.engine == nil || !c.engine.Initialized() {
		c.failUnconditionally("viewer not initialized")
		return ErrNotInitialized
	}

	if url == "" {
		c.mu.Lock()
		// Supersede any in-flight load, exactly like a new URL would: its
		// completion must not clobber the no-model state.
		c.generation++
		c.state = StateIdle
		c.currentURL = ""
		c.pendingFilter = ""
		c.hasPending = false
		c.mu.Unlock()
		c.page.Status(contracts.StatusEmpty, "select a model source")
		return nil
	}

	c.mu.Lock()
	if url == c.currentURL && c.state != StateError {
		c.mu.Unlock()
		log.Printf("[speckle-viewer-bridge] skip reload of %s", url)
		return nil
	}
	c.generation++
	gen := c.generation
	c.state = StateLoading
	c.currentURL = url
	c.mu.Unlock()

	c.page.Status(contracts.StatusLoading, url)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("load panicked: %v", r)
			c.fail(gen, err.Error())
		}
	}()

	resources, err := c.engine.Resolve(ctx, url)
	if err != nil {
		c.fail(gen, fmt.Sprintf("resolve %s: %v", url, err))
		return err
	}
	if len(resources) == 0 {
		c.fail(gen, ErrNoResourcesFound.Error())
		return ErrNoResourcesFound
	}

	// Best effort: the engine's removal primitives may be partial.
	if err := c.engine.ClearScene(); err != nil {
		log.Printf("[speckle-viewer-bridge] clear scene: %v", err)
	}

	// Sequential by design: later resources may depend on earlier ones
	// already being present in the scene graph.
	for _, resource := range resources {
		if err := c.engine.Load(ctx, resource); err != nil {
			wrapped := &ResourceLoadError{URL: resource, Err: err}
			c.fail(gen, wrapped.Error())
			return wrapped
		}
	}

	c.complete(gen, url)
	return nil
}

// FilterByID applies a filter now, or defers it when a load is in flight.
// At most one pending filter is retained; a newer one overwrites it.
func (c *Coordinator) FilterByID(id string) {
	c.mu.Lock()
	if c.state == StateLoading {
		c.pendingFilter = id
		c.hasPending = true
		c.mu.Unlock()
		log.Printf("[speckle-viewer-bridge] deferring filter %s until load completes", id)
		return
	}
	c.mu.Unlock()

	if c.filters != nil {
		c.filters.ApplyByIdentifier(id)
	}
}

// complete finishes a load: mark loaded, apply any deferred filter once,
// announce readiness. Stale generations are dropped.
func (c *Coordinator) complete(gen uint64, url string) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		log.Printf("[speckle-viewer-bridge] ignoring stale load completion for %s", url)
		return
	}
	c.state = StateLoaded
	c.lastError = ""
	pending, hasPending := c.pendingFilter, c.hasPending
	c.pendingFilter = ""
	c.hasPending = false
	c.mu.Unlock()

	c.page.Status(contracts.StatusLoaded, url)
	if hasPending && c.filters != nil {
		c.filters.ApplyByIdentifier(pending)
	}
	c.host.Publish(contracts.NewViewerReady(url))
}

// fail finishes a load on the error path: record the reason, discard any
// pending filter, surface the error inline and outward. Stale generations
// are dropped.
func (c *Coordinator) fail(gen uint64, reason string) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		log.Printf("[speckle-viewer-bridge] ignoring stale load failure: %s", reason)
		return
	}
	c.setErrorLocked(reason)
	c.mu.Unlock()

	c.report(reason)
}

// failUnconditionally reports a failure that precedes any accepted load, so
// no generation exists to compare against.
func (c *Coordinator) failUnconditionally(reason string) {
	c.mu.Lock()
	c.setErrorLocked(reason)
	c.mu.Unlock()

	c.report(reason)
}

func (c *Coordinator) setErrorLocked(reason string) {
	c.state = StateError
	c.lastError = reason
	c.pendingFilter = ""
	c.hasPending = false
}

func (c *Coordinator) report(reason string) {
	log.Printf("[speckle-viewer-bridge] load failed: %s", reason)
	c.page.Status(contracts.StatusError, reason)
	c.host.Publish(contracts.NewViewerError(reason))
}

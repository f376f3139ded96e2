// Package filter translates external identifiers into scene-graph isolate
// operations and reports outcomes outward.
package filter

import (
	"fmt"
	"log"

	"speckle-viewer-bridge/internal/contracts"
	"speckle-viewer-bridge/internal/scene"
)

// StateKey tags every isolate issued by the host so repeated filter requests
// overwrite each other instead of stacking.
const StateKey = "host-filter"

// Engine is the filtering surface the bridge drives.
type Engine interface {
	FilteringInitialized() bool
	WorldTree() *scene.Node
	Isolate(ids []string, key string, includeDescendants, ghostOthers bool) (scene.FilterState, error)
	ResetFilters() (scene.FilterState, error)
}

// Bridge applies and clears identifier filters. Its methods never propagate
// failures to the caller; problems are logged and reported outward.
type Bridge struct {
	engine Engine
	host   contracts.HostPublisher
}

// New creates a filter bridge. Publisher defaults to a no-op.
func New(engine Engine, host contracts.HostPublisher) *Bridge {
	if host == nil {
		host = contracts.NopPublisher{}
	}
	return &Bridge{engine: engine, host: host}
}

// ApplyByIdentifier isolates every scene node whose primary identifier (or,
// as a fallback, object id) equals id, descendants included, ghosting the
// rest. Matching nothing is a reported condition, not a fault.
func (b *Bridge) ApplyByIdentifier(id string) {
	if b.engine == nil || !b.engine.FilteringInitialized() {
		log.Printf("[speckle-viewer-bridge] filtering not initialized, dropping filter %s", id)
		return
	}

	matched := scene.CollectMatches(b.engine.WorldTree(), id)
	if len(matched) == 0 {
		b.host.Publish(contracts.NewViewerError(fmt.Sprintf("no objects found for identifier %s", id)))
		return
	}

	state, err := b.isolate(matched)
	if err != nil {
		log.Printf("[speckle-viewer-bridge] isolate %s: %v", id, err)
		b.host.Publish(contracts.NewViewerError(fmt.Sprintf("filter failed: %v", err)))
		return
	}

	b.host.Publish(contracts.NewFilterApplied(id, len(matched), state.HiddenCount))
}

// Clear resets all filtering state unconditionally.
func (b *Bridge) Clear() {
	if b.engine == nil || !b.engine.FilteringInitialized() {
		log.Printf("[speckle-viewer-bridge] filtering not initialized, dropping clear")
		return
	}

	if _, err := b.reset(); err != nil {
		log.Printf("[speckle-viewer-bridge] reset filters: %v", err)
		b.host.Publish(contracts.NewViewerError(fmt.Sprintf("clear filter failed: %v", err)))
		return
	}

	b.host.Publish(contracts.NewFilterCleared())
}

// isolate calls into the engine with panic containment: the filtering surface
// is external and untrusted.
func (b *Bridge) isolate(ids []string) (state scene.FilterState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("isolate panicked: %v", r)
		}
	}()
	return b.engine.Isolate(ids, StateKey, true, true)
}

func (b *Bridge) reset() (state scene.FilterState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reset panicked: %v", r)
		}
	}()
	return b.engine.ResetFilters()
}

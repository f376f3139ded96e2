// Package app wires the load, filter, and selection bridges to the message
// transport and routes inbound traffic between them.
package app

import (
	"context"
	"encoding/json"
	"log"

	"speckle-viewer-bridge/internal/config"
	"speckle-viewer-bridge/internal/contracts"
	"speckle-viewer-bridge/internal/filter"
	"speckle-viewer-bridge/internal/loader"
	"speckle-viewer-bridge/internal/render"
	"speckle-viewer-bridge/internal/selection"
	"speckle-viewer-bridge/internal/speckle"
	httptransport "speckle-viewer-bridge/internal/transport/http"
)

// Bridge is the coordinator between the host dashboard, the embed page, and
// the viewer engine.
type Bridge struct {
	cfg       config.Config
	engine    *speckle.Engine
	loads     *loader.Coordinator
	filters   *filter.Bridge
	selection *selection.Bridge
	server    *httptransport.BridgeServer
}

// New builds a fully wired bridge from configuration.
func New(cfg config.Config) *Bridge {
	engine := speckle.NewEngine(cfg.Speckle.Server, cfg.Speckle.Token)
	server := httptransport.NewBridgeServer(cfg.Listen.Addr, render.RenderShell(cfg.Speckle.Server))

	b := &Bridge{
		cfg:       cfg,
		engine:    engine,
		filters:   filter.New(engine, server),
		selection: selection.New(engine, server, cfg.Selection.PollInterval),
		server:    server,
	}
	b.loads = loader.New(engine, b.filters, server, server)

	server.OnHostMessage = b.dispatchHost
	server.OnPageMessage = b.dispatchPage
	server.OnInitialModel = func(model string) {
		go b.requestLoad(model)
	}
	return b
}

// URL returns the embed page URL.
func (b *Bridge) URL() string {
	return b.server.URL()
}

// Run starts the transport and selection discovery, loads any configured
// initial model, and blocks until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	b.server.Start()
	b.selection.Start(ctx)

	if b.cfg.Speckle.InitialModel != "" {
		go b.requestLoad(b.cfg.Speckle.InitialModel)
	}

	log.Printf("[speckle-viewer-bridge] embed page at %s", b.server.URL())

	<-ctx.Done()
	return b.server.Stop()
}

func (b *Bridge) requestLoad(url string) {
	// Load failures are already surfaced inline and outward by the
	// coordinator; nothing more to do here.
	_ = b.loads.RequestLoad(context.Background(), url)
}

// dispatchHost routes one raw host message by its type tag. Unknown types
// are logged and dropped.
func (b *Bridge) dispatchHost(raw []byte) {
	envelope, ok := httptransport.DecodeEnvelope(raw)
	if !ok {
		return
	}

	switch envelope.Type {
	case contracts.MessageTypeURLUpdate:
		var msg contracts.URLUpdateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		go b.requestLoad(msg.ModelURL)

	case contracts.MessageTypeFilterByID:
		var msg contracts.FilterByIDMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		b.loads.FilterByID(msg.ID)

	case contracts.MessageTypeClearFilter:
		b.filters.Clear()

	default:
		log.Printf("[speckle-viewer-bridge] unknown host message type %q", envelope.Type)
	}
}

// dispatchPage routes one raw embed page message by its type tag.
func (b *Bridge) dispatchPage(raw []byte) {
	envelope, ok := httptransport.DecodeEnvelope(raw)
	if !ok {
		return
	}

	switch envelope.Type {
	case contracts.MessageTypePageLoad:
		var msg contracts.PageLoadMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		go b.requestLoad(msg.Model)

	case contracts.MessageTypePageClick:
		var msg contracts.PageClickMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		b.selection.HandleClick(msg.X, msg.Y, msg.PageX, msg.PageY)
	}
}

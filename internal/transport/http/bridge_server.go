// Package httpserver handles all message traffic between the host dashboard
// and the embedded viewer page.
package httpserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"speckle-viewer-bridge/internal/contracts"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// BridgeServer serves the embed page and coordinates the two websocket
// channels: /ws for the host dashboard, /page/ws for the embed page itself.
type BridgeServer struct {
	addr  string
	shell string

	started atomic.Bool
	server  *http.Server

	// OnHostMessage receives raw inbound host messages for routing.
	OnHostMessage func([]byte)
	// OnPageMessage receives raw inbound embed page messages for routing.
	OnPageMessage func([]byte)
	// OnInitialModel receives the model query parameter of an embed page hit.
	OnInitialModel func(string)

	hostInbound chan []byte
	pageInbound chan []byte

	outbound chan any
	statuses chan contracts.StatusMessage

	hostRegister   chan *websocket.Conn
	hostUnregister chan *websocket.Conn
	pageRegister   chan *websocket.Conn
	pageUnregister chan *websocket.Conn
	stopLoop       chan struct{}

	upgrader websocket.Upgrader
}

// NewBridgeServer creates a bridge server bound to addr serving the given
// embed shell.
func NewBridgeServer(addr string, shell string) *BridgeServer {
	return &BridgeServer{
		addr:  addr,
		shell: shell,

		hostInbound: make(chan []byte, 64),
		pageInbound: make(chan []byte, 64),

		outbound: make(chan any, 32),
		statuses: make(chan contracts.StatusMessage, 32),

		hostRegister:   make(chan *websocket.Conn),
		hostUnregister: make(chan *websocket.Conn),
		pageRegister:   make(chan *websocket.Conn),
		pageUnregister: make(chan *websocket.Conn),
		stopLoop:       make(chan struct{}),

		// Inbound messages are accepted from any origin: the bridge and its
		// host live inside one trust boundary.
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// URL returns the embed page URL.
func (m *BridgeServer) URL() string {
	return "http://" + m.addr
}

// Handler returns the route table. Exposed so tests can serve it directly.
func (m *BridgeServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", m.handleIndex)
	mux.HandleFunc("/ws", m.handleHostWS)
	mux.HandleFunc("/page/ws", m.handlePageWS)
	return mux
}

// Start launches the run loop and the HTTP server.
func (m *BridgeServer) Start() {
	if m.started.Swap(true) {
		return
	}
	m.server = &http.Server{Addr: m.addr, Handler: m.Handler()}

	go m.runLoop()
	go func() {
		_ = m.server.ListenAndServe()
	}()
}

// StartLoopOnly runs the message loop without binding a listener. Tests use
// it with Handler on a test server.
func (m *BridgeServer) StartLoopOnly() {
	if m.started.Swap(true) {
		return
	}
	go m.runLoop()
}

// Stop gracefully shuts down the HTTP server and run loop.
func (m *BridgeServer) Stop() error {
	if !m.started.Swap(false) {
		return nil
	}

	var err error
	if m.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = m.server.Shutdown(ctx)
	}

	close(m.stopLoop)

	m.server = nil
	return err
}

// Publish queues an outbound host message. Messages queued while no host is
// attached are dropped by the loop: standalone runs emit nothing outward.
func (m *BridgeServer) Publish(v any) {
	if !m.started.Load() {
		return
	}
	select {
	case m.outbound <- v:
	default:
		log.Printf("[speckle-viewer-bridge] outbound queue full, dropping message")
	}
}

// Status queues a UI status update for the embed page.
func (m *BridgeServer) Status(state, detail string) {
	if !m.started.Load() {
		return
	}
	msg := contracts.StatusMessage{Type: contracts.MessageTypeStatus, State: state, Detail: detail}
	select {
	case m.statuses <- msg:
	default:
	}
}

// handleIndex serves the embed shell and forwards the model query parameter.
func (m *BridgeServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	model := r.URL.Query().Get("model")
	if model == "" {
		model = r.URL.Query().Get("url")
	}
	if model != "" && m.OnInitialModel != nil {
		m.OnInitialModel(model)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(m.shell))
}

// handleHostWS upgrades the host dashboard connection.
func (m *BridgeServer) handleHostWS(w http.ResponseWriter, r *http.Request) {
	m.handleWS(w, r, "host", m.hostRegister, m.hostUnregister, m.hostInbound)
}

// handlePageWS upgrades the embed page connection.
func (m *BridgeServer) handlePageWS(w http.ResponseWriter, r *http.Request) {
	m.handleWS(w, r, "page", m.pageRegister, m.pageUnregister, m.pageInbound)
}

// handleWS upgrades a connection and pumps its messages into the loop.
func (m *BridgeServer) handleWS(w http.ResponseWriter, r *http.Request, kind string, register, unregister chan *websocket.Conn, inbound chan []byte) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	connID := uuid.NewString()
	log.Printf("[speckle-viewer-bridge] %s connected id=%s", kind, connID)

	// Every loop send races shutdown: once stopLoop closes, nothing drains
	// these channels, so each send pairs with it to avoid leaking here.
	select {
	case register <- conn:
	case <-m.stopLoop:
		_ = conn.Close()
		return
	}
	defer func() {
		log.Printf("[speckle-viewer-bridge] %s disconnected id=%s", kind, connID)
		select {
		case unregister <- conn:
		case <-m.stopLoop:
			_ = conn.Close()
		}
	}()

	// Block here until the connection closes / errors out.
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case inbound <- msg:
		case <-m.stopLoop:
			return
		}
	}
}

// runLoop serializes connection state and websocket writes on one goroutine.
func (m *BridgeServer) runLoop() {
	var hostConn *websocket.Conn
	var pageConn *websocket.Conn

	var lastStatus *contracts.StatusMessage

	for {
		select {
		case v := <-m.outbound:
			if hostConn == nil {
				// Not embedded: suppress all outward messaging.
				continue
			}
			if !writeJSON(hostConn, v) {
				hostConn = nil
			}

		case status := <-m.statuses:
			lastStatus = &status
			if pageConn == nil {
				continue
			}
			if !writeJSON(pageConn, status) {
				pageConn = nil
			}

		case c := <-m.hostRegister:
			if hostConn != nil {
				_ = hostConn.Close()
			}
			hostConn = c

		case c := <-m.hostUnregister:
			if hostConn == c {
				_ = hostConn.Close()
				hostConn = nil
			}

		case c := <-m.pageRegister:
			if pageConn != nil {
				_ = pageConn.Close()
			}
			pageConn = c
			if lastStatus != nil && !writeJSON(pageConn, *lastStatus) {
				pageConn = nil
			}

		case c := <-m.pageUnregister:
			if pageConn == c {
				_ = pageConn.Close()
				pageConn = nil
			}

		case raw := <-m.hostInbound:
			if m.OnHostMessage != nil {
				m.OnHostMessage(raw)
			}

		case raw := <-m.pageInbound:
			if m.OnPageMessage != nil {
				m.OnPageMessage(raw)
			}

		case <-m.stopLoop:
			if hostConn != nil {
				_ = hostConn.Close()
			}
			if pageConn != nil {
				_ = pageConn.Close()
			}
			return
		}
	}
}

// writeJSON writes a JSON message and reports whether the connection is usable.
func writeJSON(conn *websocket.Conn, v any) bool {
	if err := conn.WriteJSON(v); err != nil {
		_ = conn.Close()
		return false
	}
	return true
}

// DecodeEnvelope peels the type discriminator off a raw inbound message.
func DecodeEnvelope(raw []byte) (contracts.Envelope, bool) {
	var envelope contracts.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return contracts.Envelope{}, false
	}
	return envelope, true
}

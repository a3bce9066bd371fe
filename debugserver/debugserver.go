// Package debugserver exposes a websocket introspection endpoint that
// streams Network Data version bumps, indirect-sender queue-depth
// changes, and DHCPv6 IdentityAssociation transitions as JSON events, the
// way StreamLogs upgrades an HTTP connection to a websocket and pushes
// one JSON-able message per event with a background reader goroutine to
// notice client disconnects.
package debugserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/openthread-go/netdata/std/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventKind names the category of a streamed event.
type EventKind string

const (
	EventNetData         EventKind = "net_data"
	EventIndirectQueue   EventKind = "indirect_queue"
	EventDhcp6Transition EventKind = "dhcp6_ia"
)

// Event is one JSON message pushed to every connected client.
type Event struct {
	Kind EventKind `json:"kind"`
	Data any       `json:"data"`
}

// NetDataEventData accompanies EventNetData.
type NetDataEventData struct {
	Version       uint8 `json:"version"`
	StableVersion uint8 `json:"stable_version"`
}

// IndirectQueueEventData accompanies EventIndirectQueue.
type IndirectQueueEventData struct {
	ChildRloc16 uint16 `json:"child_rloc16"`
	QueueDepth  int    `json:"queue_depth"`
}

// Dhcp6TransitionEventData accompanies EventDhcp6Transition.
type Dhcp6TransitionEventData struct {
	Prefix string `json:"prefix"`
	Status string `json:"status"`
}

// Server streams Event messages to every client connected to /events.
type Server struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	httpSrv *http.Server
}

// New builds a Server that will listen on addr once Start is called.
func New(addr string) *Server {
	s := &Server{clients: make(map[*websocket.Conn]struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins serving in the background. It returns once the listener
// is bound; ListenAndServe's own error (other than the expected
// http.ErrServerClosed on Stop) is logged rather than returned, matching
// a best-effort debug endpoint.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpSrv.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Warnf("debugserver: serve: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server and drops every client.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("debugserver: upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain client reads so a disconnect is noticed promptly; this
	// endpoint is push-only and never expects an inbound message.
	go func() {
		defer s.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// broadcast writes ev to every connected client, dropping any that error.
func (s *Server) broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Warnf("debugserver: marshal event: %v", err)
		return
	}

	s.mu.Lock()
	targets := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.dropClient(c)
		}
	}
}

// PublishNetData sends a Network Data version-change event.
func (s *Server) PublishNetData(version, stableVersion uint8) {
	s.broadcast(Event{Kind: EventNetData, Data: NetDataEventData{Version: version, StableVersion: stableVersion}})
}

// PublishIndirectQueueDepth sends a child's current indirect-queue depth.
func (s *Server) PublishIndirectQueueDepth(childRloc16 uint16, depth int) {
	s.broadcast(Event{Kind: EventIndirectQueue, Data: IndirectQueueEventData{ChildRloc16: childRloc16, QueueDepth: depth}})
}

// PublishDhcp6Transition sends an IdentityAssociation status transition.
func (s *Server) PublishDhcp6Transition(prefix, status string) {
	s.broadcast(Event{Kind: EventDhcp6Transition, Data: Dhcp6TransitionEventData{Prefix: prefix, Status: status}})
}

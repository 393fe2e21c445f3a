// Package web shows the display sinks in a browser window. The page stacks one panel per sink in a
// scrollable column and receives the frames over a websocket.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/ftl/replayscope/scope"
	"github.com/ftl/replayscope/settings"
)

//go:embed static
var staticFiles embed.FS

const (
	writeTimeout = 5 * time.Second
	readLimit    = 4096
)

// GeometryStore keeps the last window geometry reported by a page.
type GeometryStore interface {
	Geometry() (settings.Geometry, bool)
	SetGeometry(settings.Geometry)
}

// Snapshotter writes the latest buffers of all sinks and returns the names of the written files.
type Snapshotter interface {
	Snapshot() ([]string, error)
}

type Server struct {
	address     string
	panels      []scope.Panel
	geometry    GeometryStore
	snapshotter Snapshotter

	upgrader websocket.Upgrader
	hub      *hub

	lock     *sync.Mutex
	listener net.Listener
	server   *http.Server
	sessions *sync.WaitGroup
}

func NewServer(address string, panels []scope.Panel, geometry GeometryStore, snapshotter Snapshotter) *Server {
	return &Server{
		address:     address,
		panels:      panels,
		geometry:    geometry,
		snapshotter: snapshotter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
		},
		lock:     &sync.Mutex{},
		sessions: &sync.WaitGroup{},
	}
}

func (s *Server) Handler() http.Handler {
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServerFS(static))
	mux.HandleFunc("GET /panels", s.servePanels)
	mux.HandleFunc("GET /ws", s.serveWebsocket)
	mux.HandleFunc("POST /snapshot", s.serveSnapshot)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "ok")
	})
	return mux
}

// Start binds the listening socket and serves the pages in the background.
func (s *Server) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.server != nil {
		return fmt.Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("cannot listen on address %s: %w", s.address, err)
	}
	s.listener = listener
	s.hub = newHub(defaultOutBufferSize)
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.run()
	go func(server *http.Server) {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("web server failed: %v", err)
		}
	}(s.server)

	log.Printf("web window on http://%s/", listener.Addr())
	return nil
}

// Stop closes all pages and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.lock.Lock()
	server := s.server
	hub := s.hub
	s.server = nil
	s.listener = nil
	s.lock.Unlock()
	if server == nil {
		return nil
	}

	hub.stop()
	err := server.Shutdown(ctx)
	s.sessions.Wait()
	return err
}

func (s *Server) Addr() net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) activeHub() *hub {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.server == nil {
		return nil
	}
	return s.hub
}

func (s *Server) ShowTimeFrame(frame *scope.TimeFrame) {
	s.broadcast(encodeTimeFrame(frame))
}

func (s *Server) ShowSpectralFrame(frame *scope.SpectralFrame) {
	s.broadcast(encodeSpectralFrame(frame))
}

func (s *Server) ShowWaterfallFrame(frame *scope.WaterfallFrame) {
	s.broadcast(encodeWaterfallFrame(frame))
}

func (s *Server) broadcast(message []byte, err error) {
	if err != nil {
		log.Printf("cannot encode frame: %v", err)
		return
	}
	hub := s.activeHub()
	if hub == nil {
		return
	}
	hub.send(message)
}

func (s *Server) servePanels(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(s.panels)
	if err != nil {
		log.Printf("cannot send panels: %v", err)
	}
}

func (s *Server) serveSnapshot(w http.ResponseWriter, _ *http.Request) {
	if s.snapshotter == nil {
		http.Error(w, "snapshots are not available", http.StatusNotImplemented)
		return
	}
	filenames, err := s.snapshotter.Snapshot()
	if err != nil {
		log.Printf("cannot write snapshot: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if filenames == nil {
		filenames = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(filenames)
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	hub := s.activeHub()
	if hub == nil {
		http.Error(w, "web server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("cannot upgrade to websocket: %v", err)
		return
	}

	s.sessions.Add(1)
	session := &session{
		id:       ulid.Make().String(),
		conn:     conn,
		hub:      hub,
		geometry: s.geometry,
	}
	go func() {
		defer s.sessions.Done()
		session.run(s.panels)
	}()
}

// session serves one connected page.
type session struct {
	id       string
	conn     *websocket.Conn
	hub      *hub
	geometry GeometryStore
}

func (s *session) run(panels []scope.Panel) {
	defer s.conn.Close()
	log.Printf("page %s connected from %s", s.id, s.conn.RemoteAddr())

	err := s.greet(panels)
	if err != nil {
		log.Printf("cannot greet page %s: %v", s.id, err)
		return
	}

	out := s.hub.stream()
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.readLoop()
	}()
	defer s.hub.release(out)

	for {
		select {
		case message, open := <-out:
			if !open {
				s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeTimeout))
				log.Printf("page %s dropped", s.id)
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := s.conn.WriteMessage(websocket.TextMessage, message)
			if err != nil {
				log.Printf("cannot write to page %s: %v", s.id, err)
				return
			}
		case <-readerDone:
			log.Printf("page %s disconnected", s.id)
			return
		}
	}
}

func (s *session) greet(panels []scope.Panel) error {
	messages := []message{
		{Type: sessionMessage, Session: s.id},
		{Type: panelsMessage, Panels: panels},
	}
	if s.geometry != nil {
		if geometry, ok := s.geometry.Geometry(); ok {
			messages = append(messages, message{Type: geometryMessage, Geometry: &geometry})
		}
	}

	for _, m := range messages {
		m.Timestamp = time.Now()
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := s.conn.WriteJSON(m)
		if err != nil {
			return err
		}
	}
	return nil
}

// readLoop handles the geometry reports of the page until the connection is closed.
func (s *session) readLoop() {
	s.conn.SetReadLimit(readLimit)
	for {
		var m message
		err := s.conn.ReadJSON(&m)
		if err != nil {
			return
		}
		switch m.Type {
		case geometryMessage:
			if m.Geometry == nil || !m.Geometry.Valid() || s.geometry == nil {
				continue
			}
			s.geometry.SetGeometry(*m.Geometry)
		default:
			log.Printf("page %s sent unknown message type %q", s.id, m.Type)
		}
	}
}

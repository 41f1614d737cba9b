// Package preview renders the active code snippet in a browser. The snippet
// runs inside a fully sandboxed iframe: scripts and modals only, no
// navigation, no access to the host page, and nothing flows back from the
// snippet into the application.
package preview

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vango-go/universe/pkg/core/types"
)

// Runner displays code snippets. The orchestrator talks to this interface;
// tests substitute a recorder.
type Runner interface {
	Show(snippet types.CodeSnippet)
	Clear()
}

var pageTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{if .Has}}{{.Name}}{{else}}Preview{{end}}</title>
<style>
  html, body { margin: 0; height: 100%; background: #0f0f14; color: #e5e5ea; font-family: sans-serif; }
  iframe { border: 0; width: 100%; height: 100%; background: #fff; }
  .empty { display: flex; height: 100%; align-items: center; justify-content: center; opacity: 0.6; }
</style>
</head>
<body>
{{if .Has}}<iframe sandbox="allow-scripts allow-modals" srcdoc="{{.HTML}}"></iframe>{{else}}<div class="empty">No snippet selected</div>{{end}}
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onmessage = function () { location.reload(); };
})();
</script>
</body>
</html>
`))

type pageData struct {
	Has  bool
	Name string
	HTML string
}

// Server is an HTTP preview server implementing Runner. It serves the active
// snippet at / and pushes reload signals over /ws whenever it changes.
type Server struct {
	addr     string
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	snippet  types.CodeSnippet
	has      bool
	clients  map[*websocket.Conn]struct{}
	listener net.Listener
	server   *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a preview server listening on addr (":0" picks a free
// port). Call Start before use.
func NewServer(addr string, opts ...ServerOption) *Server {
	s := &Server{
		addr:    addr,
		logger:  slog.Default(),
		clients: make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the preview HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start begins serving in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("start preview server: %w", err)
	}
	srv := &http.Server{Handler: s.Handler()}

	s.mu.Lock()
	s.listener = ln
	s.server = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Debug("preview server stopped", "error", err)
		}
	}()
	s.logger.Debug("preview server running", "url", s.URL())
	return nil
}

// URL returns the server's base URL, or "" before Start.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Shutdown stops the server and drops all reload subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Show makes snippet the displayed one and pushes a reload to open pages.
func (s *Server) Show(snippet types.CodeSnippet) {
	s.mu.Lock()
	s.snippet = snippet
	s.has = true
	s.mu.Unlock()
	s.broadcastReload()
}

// Clear removes the displayed snippet.
func (s *Server) Clear() {
	s.mu.Lock()
	s.snippet = types.CodeSnippet{}
	s.has = false
	s.mu.Unlock()
	s.broadcastReload()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	data := pageData{Has: s.has, Name: s.snippet.Name, HTML: s.snippet.HTML}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Debug("preview render failed", "error", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain until the page goes away.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) broadcastReload() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("reload")); err != nil {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}
	}
}

package chat

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cmuxiao/deepchat/internal/bridge"
	"github.com/cmuxiao/deepchat/internal/panel"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// WSPath is where the panel page opens its websocket.
	WSPath = "/ws"

	writeWait    = 10 * time.Second
	maxFrameSize = 1 << 20
)

//go:embed assets/panel.html.tmpl
var assets embed.FS

// Options configures a Server.
type Options struct {
	Title       string
	Model       string
	Token       string
	MaxInFlight int

	// AllowedOrigins are browser origins, besides the page's own host,
	// accepted on the websocket when no token is configured.
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server serves the web chat panel and bridges its websocket to a Bridge.
type Server struct {
	bridge *bridge.Bridge
	opts   Options
	page   *template.Template
	log    *zap.Logger

	mu    sync.Mutex
	conns map[*connection]struct{}
	wg    sync.WaitGroup
}

// pageData feeds the panel template.
type pageData struct {
	Title  string
	Model  string
	WSPath string
}

// NewServer creates a server in front of b.
func NewServer(b *bridge.Bridge, opts Options) (*Server, error) {
	page, err := template.ParseFS(assets, "assets/panel.html.tmpl")
	if err != nil {
		return nil, err
	}
	if opts.Title == "" {
		opts.Title = "deepchat"
	}
	if opts.MaxInFlight < 1 {
		opts.MaxInFlight = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		bridge: b,
		opts:   opts,
		page:   page,
		log:    opts.Logger,
		conns:  make(map[*connection]struct{}),
	}, nil
}

// HTTPHandler returns an http.Handler for the panel endpoints.
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handlePage)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc(WSPath, s.auth(s.handleWS))
	return mux
}

// Close cancels the relays of every open connection and waits for their
// handlers to return.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.session.CancelAll()
		_ = c.conn.Close()
	}
	s.wg.Wait()
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, pageData{Title: s.opts.Title, Model: s.opts.Model, WSPath: WSPath}); err != nil {
		s.log.Error("render panel page", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "model": s.opts.Model})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	conn, err := s.upgrade(w, r)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxFrameSize)

	c := &connection{
		conn:    conn,
		session: s.bridge.NewSession(s.opts.MaxInFlight),
		log:     s.log.With(zap.String("remote", r.RemoteAddr)),
	}
	s.track(c)
	defer s.untrack(c)

	c.log.Info("panel connected")
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c.run(ctx)
	c.log.Info("panel disconnected")
}

func (s *Server) track(c *connection) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()
}

func (s *Server) untrack(c *connection) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

// connection is one panel attached over a websocket.
type connection struct {
	conn    *websocket.Conn
	session *bridge.Session
	log     *zap.Logger

	writeMu sync.Mutex
}

// run reads client frames until the socket closes, then cancels the
// connection's relays and waits for them.
func (c *connection) run(ctx context.Context) {
	defer func() {
		c.session.CancelAll()
		c.session.Wait()
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		ev, err := DecodeClientEvent(data)
		if err != nil {
			c.log.Warn("dropping client frame", zap.Error(err))
			continue
		}
		c.handle(ctx, ev)
	}
}

func (c *connection) handle(ctx context.Context, ev ClientEvent) {
	switch ev.Command {
	case panel.CommandChat:
		if ev.Text == "" {
			return
		}
		id, err := c.session.Start(ctx, bridge.Request{ID: ev.ID, Prompt: ev.Text}, c.relay)
		if err != nil {
			c.log.Info("chat request refused", zap.String("request_id", id), zap.Error(err))
			_ = c.write(errorEvent(id, err))
		}
	case panel.CommandCancel:
		if ev.ID == "" {
			c.session.CancelAll()
			return
		}
		if !c.session.Cancel(ev.ID) {
			c.log.Debug("cancel for unknown request", zap.String("request_id", ev.ID))
		}
	}
}

func (c *connection) relay(u bridge.Update) {
	if err := c.write(ToWireEvent(u)); err != nil {
		c.log.Debug("websocket write failed", zap.String("request_id", u.ID), zap.Error(err))
	}
}

// write serializes frames; gorilla connections allow one concurrent writer.
func (c *connection) write(ev WireEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// authorized accepts the token as a bearer header or, for browsers that
// cannot set headers on websockets, as the token query parameter.
func (s *Server) authorized(r *http.Request) bool {
	token := strings.TrimSpace(s.opts.Token)
	if token == "" {
		return true
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q == token
	}
	value := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(value, prefix)) == token
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return upgrader.Upgrade(w, r, nil)
}

// checkOrigin rejects cross-site pages. Without a token anything that can
// reach the port could drive the model, so a browser Origin must be the
// panel's own host or one of AllowedOrigins. Non-browser clients send no
// Origin. With a token the token alone decides.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || strings.TrimSpace(s.opts.Token) != "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && u.Host != "" && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(strings.TrimSpace(allowed), "/"), origin) {
			return true
		}
	}
	s.log.Warn("websocket origin rejected", zap.String("origin", origin), zap.String("host", r.Host))
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

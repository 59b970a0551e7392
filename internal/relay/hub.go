// Package relay broadcasts chat messages between WebSocket clients. Every
// inbound frame is validated by the content pipeline and the safe payload is
// delivered to every connected client, the sender included.
package relay

import (
	"chatrelay/internal/config"
	"chatrelay/pkg/content"
	"chatrelay/pkg/controller"
	"chatrelay/pkg/domain"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/metrics"
	"chatrelay/pkg/tracing"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ValidateSpanName names the span wrapping the validation of one message.
const ValidateSpanName = "chat.validate_message"

// ErrClosed is returned when the hub no longer accepts clients.
var ErrClosed = errors.New("relay hub closed")

// Options holds the connection limits and timing of the relay.
type Options struct {
	// MaxMessageSize is the largest inbound frame in bytes.
	MaxMessageSize int64
	// SendBuffer is the number of outbound payloads queued per client.
	// A client whose queue is full is disconnected.
	SendBuffer int
	// WriteWait is the time allowed to write a frame.
	WriteWait time.Duration
	// PongWait is the time allowed between pongs.
	PongWait time.Duration
	// PingPeriod is the interval between pings. It must be shorter than PongWait.
	PingPeriod time.Duration
	// AllowedOrigins lists the origins allowed to connect; "*" allows any.
	AllowedOrigins []string
}

// NewOptions maps the chat settings of cfg onto Options.
func NewOptions(cfg *config.Config) Options {
	return Options{
		MaxMessageSize: cfg.Chat.MaxMessageSize,
		SendBuffer:     cfg.Chat.SendBuffer,
		WriteWait:      cfg.Chat.WriteWait,
		PongWait:       cfg.Chat.PongWait,
		PingPeriod:     cfg.Chat.PingPeriod,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}
}

// Deps are the collaborators of the hub. Metrics and Tracer may be nil.
type Deps struct {
	Pipeline *content.Pipeline
	Metrics  *metrics.Collector
	Tracer   *tracing.Tracer
}

// Hub owns the set of connected clients. Membership changes and broadcasts
// are serialized through the Run loop.
type Hub struct {
	deps     Deps
	opts     Options
	upgrader websocket.Upgrader

	clients map[*Client]struct{}
	count   int
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewHub creates a hub. Run must be called for clients to be served.
func NewHub(deps Deps, opts Options) *Hub {
	if deps.Pipeline == nil {
		deps.Pipeline = content.NewPipeline(nil)
	}
	h := &Hub{
		deps:       deps,
		opts:       opts,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return controller.OriginAllowed(opts.AllowedOrigins, r.Header.Get("Origin"))
		},
	}

	return h
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.count
}

// Run serves registrations and broadcasts until ctx is cancelled or Shutdown
// is called. On exit every client is disconnected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.disconnectAll(ctx)

			return
		case <-h.stop:
			h.disconnectAll(ctx)

			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case payload := <-h.broadcast:
			h.fanOut(ctx, payload)
		}
	}
}

// Shutdown stops the Run loop, disconnects all clients and waits up to
// timeout for their goroutines to finish.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.stopOnce.Do(func() { close(h.stop) })

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.C:
		return context.DeadlineExceeded
	}

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and registers the
// client with the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied with an error status
		logger.Warn(r.Context(), "websocket upgrade failed", zap.Error(err))

		return
	}

	// the request context ends with this handler; keep its values only
	ctx := context.WithoutCancel(r.Context())
	c := newClient(ctx, h, conn, controller.GetClientIP(r))
	if err := h.join(c); err != nil {
		logger.Warn(ctx, "could not register client", zap.Error(err))
		_ = conn.Close()
	}
}

func (h *Hub) join(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrClosed
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// publish hands a validated payload to the Run loop. It reports false when
// the hub is closed.
func (h *Hub) publish(payload []byte) bool {
	select {
	case h.broadcast <- payload:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.count = len(h.clients)
	count := h.count
	h.mu.Unlock()

	h.deps.Metrics.SocketEvent(metrics.SocketConnect)
	logger.Info(c.ctx, "client connected", zap.Int("clients", count))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

// remove deletes c and closes its queue, which makes its write pump send a
// close frame and hang up. It is a no-op for clients already removed.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()

		return
	}
	delete(h.clients, c)
	h.count = len(h.clients)
	count := h.count
	h.mu.Unlock()

	close(c.send)
	h.deps.Metrics.SocketEvent(metrics.SocketDisconnect)
	logger.Info(c.ctx, "client disconnected", zap.Int("clients", count))
}

func (h *Hub) fanOut(ctx context.Context, payload []byte) {
	var slow []*Client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		logger.Warn(c.ctx, "client send buffer full, disconnecting")
		h.remove(c)
	}
	logger.Debug(ctx, "message broadcast", zap.Int("clients", len(h.clients)))
}

func (h *Hub) disconnectAll(ctx context.Context) {
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	for _, c := range clients {
		h.remove(c)
	}
	logger.Info(ctx, "relay hub stopped", zap.Int("disconnected", len(clients)))
}

// validate runs the content pipeline on one inbound frame inside a span and
// records its classification.
func (h *Hub) validate(ctx context.Context, c *Client, raw any, size int) []byte {
	ctx, span := h.deps.Tracer.Start(ctx, ValidateSpanName, trace.WithAttributes(
		attribute.String("chat.client_id", c.id),
		attribute.Int("chat.payload_size", size),
	))
	defer span.End()

	res := h.deps.Pipeline.Validate(ctx, raw)
	span.SetAttributes(attribute.String("chat.kind", string(res.Kind)))
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	if res.Kind != domain.ContentKindRejected {
		span.SetStatus(codes.Ok, "")
	}
	h.deps.Metrics.ChatMessage(ctx, res.Kind, size)

	return []byte(res.Payload)
}

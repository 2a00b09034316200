package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/bau/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHeartbeat  = 30 * time.Second
	defaultMaxClients = 1000
	clientBufferSize  = 100

	eventConnected = "connected"
	eventHeartbeat = "heartbeat"
)

// ErrSlowClients is returned by Broadcast when some clients missed the event
var ErrSlowClients = errors.New("progress event dropped for slow clients")

// SSEMessage is one Server-Sent Events frame
type SSEMessage struct {
	Event string
	Data  string
	ID    string
}

// streamClient is one connected EventSource
type streamClient struct {
	id       string
	operator string
	ch       chan SSEMessage
}

// ProgressStreamHandler fans provisioning progress out to SSE clients.
// It is the local ProgressSink of the server; remote instances reach it
// through a ProgressSubscriber.
type ProgressStreamHandler struct {
	BaseHandler
	subscriber provisioning.ProgressSubscriber
	logger     *zap.Logger
	clients    sync.Map // map[string]*streamClient
	ctx        context.Context
	cancel     context.CancelFunc
	heartbeat  time.Duration
	maxClients int
	seq        atomic.Uint64

	startMu sync.Mutex
	started bool
}

// ProgressStreamOption configures a ProgressStreamHandler
type ProgressStreamOption func(*ProgressStreamHandler)

// WithStreamLogger sets the logger
func WithStreamLogger(logger *zap.Logger) ProgressStreamOption {
	return func(h *ProgressStreamHandler) {
		h.logger = logger
	}
}

// WithStreamHeartbeat sets the heartbeat interval
func WithStreamHeartbeat(interval time.Duration) ProgressStreamOption {
	return func(h *ProgressStreamHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// WithStreamMaxClients caps concurrent connections. Zero or less disables the cap.
func WithStreamMaxClients(n int) ProgressStreamOption {
	return func(h *ProgressStreamHandler) {
		h.maxClients = n
	}
}

// WithStreamSubscriber relays progress published by other instances
func WithStreamSubscriber(s provisioning.ProgressSubscriber) ProgressStreamOption {
	return func(h *ProgressStreamHandler) {
		h.subscriber = s
	}
}

// NewProgressStreamHandler creates a ProgressStreamHandler
func NewProgressStreamHandler(opts ...ProgressStreamOption) *ProgressStreamHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &ProgressStreamHandler{
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
		heartbeat:  defaultHeartbeat,
		maxClients: defaultMaxClients,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("progress_stream")
	return h
}

var _ provisioning.ProgressSink = (*ProgressStreamHandler)(nil)

// Start launches the heartbeat and, when configured, the remote relay
func (h *ProgressStreamHandler) Start() error {
	h.startMu.Lock()
	defer h.startMu.Unlock()

	if h.started {
		return errors.New("progress stream already started")
	}
	if h.ctx.Err() != nil {
		return errors.New("progress stream stopped")
	}

	go h.sendHeartbeats()

	if h.subscriber != nil {
		go func() {
			err := h.subscriber.Subscribe(h.ctx, h.relay)
			if err != nil && h.ctx.Err() == nil {
				h.logger.Error("Progress relay subscription ended", zap.Error(err))
			}
		}()
	}

	h.started = true
	h.logger.Info("Progress stream started",
		zap.Duration("heartbeat", h.heartbeat),
		zap.Int("max_clients", h.maxClients),
		zap.Bool("relay", h.subscriber != nil),
	)
	return nil
}

// Stop disconnects every client. Client channels are left to the
// garbage collector so a late Broadcast never sends on a closed channel.
func (h *ProgressStreamHandler) Stop() {
	h.cancel()
	h.logger.Info("Progress stream stopped")
}

// Broadcast implements provisioning.ProgressSink
func (h *ProgressStreamHandler) Broadcast(_ context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	return h.publish(event, data)
}

// relay forwards an event received from another instance
func (h *ProgressStreamHandler) relay(env provisioning.ProgressEnvelope) {
	if err := h.publish(env.Event, env.Payload); err != nil {
		h.logger.Debug("Relayed progress event partially delivered", zap.Error(err))
	}
}

func (h *ProgressStreamHandler) publish(event string, data []byte) error {
	msg := SSEMessage{
		Event: event,
		Data:  string(data),
		ID:    strconv.FormatUint(h.seq.Add(1), 10),
	}
	if dropped := h.broadcast(msg); dropped > 0 {
		return fmt.Errorf("%w: %d", ErrSlowClients, dropped)
	}
	return nil
}

// broadcast queues msg for every client and returns how many were skipped
func (h *ProgressStreamHandler) broadcast(msg SSEMessage) int {
	dropped := 0
	h.clients.Range(func(_, value any) bool {
		client, ok := value.(*streamClient)
		if !ok {
			return true
		}
		select {
		case client.ch <- msg:
		default:
			dropped++
			h.logger.Warn("Client buffer full, dropping progress event",
				zap.String("client_id", client.id),
				zap.String("event", msg.Event),
			)
		}
		return true
	})
	return dropped
}

func (h *ProgressStreamHandler) sendHeartbeats() {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case now := <-ticker.C:
			h.broadcast(SSEMessage{
				Event: eventHeartbeat,
				Data:  fmt.Sprintf(`{"timestamp":%d}`, now.Unix()),
			})
		}
	}
}

// Stream serves GET /api/v1/provisioning/stream
func (h *ProgressStreamHandler) Stream(c *gin.Context) {
	if h.ctx.Err() != nil {
		h.ServiceUnavailable(c, "Progress stream is shutting down")
		return
	}
	if h.maxClients > 0 && h.ClientCount() >= h.maxClients {
		h.ServiceUnavailable(c, "Maximum number of progress stream connections reached")
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	client := &streamClient{
		id:       uuid.NewString(),
		operator: middleware.GetOperator(c),
		ch:       make(chan SSEMessage, clientBufferSize),
	}
	h.clients.Store(client.id, client)
	defer h.clients.Delete(client.id)

	log := h.logger.With(zap.String("client_id", client.id), zap.String("operator", client.operator))
	log.Info("Progress stream client connected")

	c.Status(http.StatusOK)
	writeEvent(c.Writer, SSEMessage{
		Event: eventConnected,
		Data:  fmt.Sprintf(`{"clientId":%q,"timestamp":%d}`, client.id, time.Now().Unix()),
	})
	c.Writer.Flush()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			log.Info("Progress stream client disconnected")
			return
		case <-h.ctx.Done():
			log.Info("Progress stream stopped, disconnecting client")
			return
		case msg := <-client.ch:
			writeEvent(c.Writer, msg)
			c.Writer.Flush()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *ProgressStreamHandler) ClientCount() int {
	count := 0
	h.clients.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func writeEvent(w io.Writer, msg SSEMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}

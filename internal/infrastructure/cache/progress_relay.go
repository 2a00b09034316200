package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bau/backend/internal/domain/provisioning"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultProgressChannel is the Pub/Sub channel shared by all instances
	DefaultProgressChannel = "bau:provisioning:progress"

	defaultCloseTimeout   = 5 * time.Second
	defaultPublishTimeout = 500 * time.Millisecond
)

// RedisProgressRelay fans progress events out to other instances through
// Redis Pub/Sub. Publishing implements provisioning.ProgressSink; each
// instance runs Subscribe to feed its local SSE hub.
type RedisProgressRelay struct {
	client         *redis.Client
	channel        string
	origin         string
	publishTimeout time.Duration
	logger         *zap.Logger
	cancelFn       context.CancelFunc
	doneCh         chan struct{}
	doneOnce       sync.Once
	mu             sync.Mutex
	isRunning      bool
}

// RedisProgressRelayOption configures the relay
type RedisProgressRelayOption func(*RedisProgressRelay)

// WithRelayChannel sets the Pub/Sub channel name
func WithRelayChannel(channel string) RedisProgressRelayOption {
	return func(r *RedisProgressRelay) {
		if channel != "" {
			r.channel = channel
		}
	}
}

// WithRelayOrigin overrides the generated instance id
func WithRelayOrigin(origin string) RedisProgressRelayOption {
	return func(r *RedisProgressRelay) {
		if origin != "" {
			r.origin = origin
		}
	}
}

// WithRelayPublishTimeout caps how long one Broadcast may wait on Redis
func WithRelayPublishTimeout(timeout time.Duration) RedisProgressRelayOption {
	return func(r *RedisProgressRelay) {
		if timeout > 0 {
			r.publishTimeout = timeout
		}
	}
}

// WithRelayLogger sets the logger
func WithRelayLogger(logger *zap.Logger) RedisProgressRelayOption {
	return func(r *RedisProgressRelay) {
		r.logger = logger
	}
}

// NewRedisProgressRelay creates a relay on a shared client. The caller
// keeps ownership of the client.
func NewRedisProgressRelay(client *redis.Client, opts ...RedisProgressRelayOption) *RedisProgressRelay {
	r := &RedisProgressRelay{
		client:         client,
		channel:        DefaultProgressChannel,
		origin:         uuid.NewString(),
		publishTimeout: defaultPublishTimeout,
		logger:         zap.NewNop(),
		doneCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Broadcast publishes the event to all subscribed instances. The publish
// gets its own deadline and ignores cancellation of ctx, so a slow Redis
// costs a run at most the publish timeout per event.
func (r *RedisProgressRelay) Broadcast(ctx context.Context, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal progress payload: %w", err)
	}

	data, err := json.Marshal(provisioning.ProgressEnvelope{
		Origin:  r.origin,
		Event:   event,
		Payload: raw,
		SentAt:  time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal progress envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.publishTimeout)
	defer cancel()

	// the client may not honor ctx deadlines on the socket, so stop
	// waiting once the deadline passes and let the publish finish alone
	published := make(chan error, 1)
	go func() {
		published <- r.client.Publish(ctx, r.channel, data).Err()
	}()

	select {
	case err = <-published:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		r.logger.Warn("Failed to publish progress event",
			zap.String("channel", r.channel),
			zap.String("event", event),
			zap.Error(err))
		return fmt.Errorf("failed to publish progress event: %w", err)
	}
	return nil
}

// Subscribe blocks, handing every envelope published by other instances to
// callback until ctx is cancelled or Close is called
func (r *RedisProgressRelay) Subscribe(ctx context.Context, callback func(provisioning.ProgressEnvelope)) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	r.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	r.cancelFn = cancel
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.isRunning = false
		r.mu.Unlock()
		r.markDone()
	}()

	pubsub := r.client.Subscribe(subCtx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	r.logger.Info("Subscribed to provisioning progress channel",
		zap.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			r.logger.Info("Progress relay subscription stopped")
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("Progress relay channel closed")
				return nil
			}

			var env provisioning.ProgressEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Error("Failed to unmarshal progress envelope",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			r.dispatch(callback, env)
		}
	}
}

func (r *RedisProgressRelay) dispatch(callback func(provisioning.ProgressEnvelope), env provisioning.ProgressEnvelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic in progress relay callback", zap.Any("panic", rec))
		}
	}()
	callback(env)
}

func (r *RedisProgressRelay) markDone() {
	r.doneOnce.Do(func() {
		close(r.doneCh)
	})
}

// Close stops a running subscription and waits briefly for it to exit
func (r *RedisProgressRelay) Close() error {
	r.mu.Lock()
	cancelFn := r.cancelFn
	r.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-r.doneCh:
		case <-time.After(defaultCloseTimeout):
			r.logger.Warn("Timeout waiting for progress subscription to stop")
		}
	}
	return nil
}

var _ provisioning.ProgressSink = (*RedisProgressRelay)(nil)

var _ provisioning.ProgressSubscriber = (*RedisProgressRelay)(nil)

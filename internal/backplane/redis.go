package backplane

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chat-gateway/internal/observability"
)

// Redis publishes envelopes on a pub/sub channel tagged with this node's id.
// Local connections are served directly; envelopes echoed back by Redis are
// skipped.
type Redis struct {
	client    *redis.Client
	channel   string
	node      string
	deliverer Deliverer
	logger    *zap.Logger
}

// NewRedis connects to url and verifies it with a ping.
func NewRedis(ctx context.Context, url, channel string, d Deliverer, logger *zap.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewRedisWithClient(client, channel, d, logger), nil
}

func NewRedisWithClient(client *redis.Client, channel string, d Deliverer, logger *zap.Logger) *Redis {
	return &Redis{
		client:    client,
		channel:   channel,
		node:      uuid.NewString(),
		deliverer: d,
		logger:    logger.With(zap.String("component", "backplane")),
	}
}

// Node is this process's id in the cluster.
func (r *Redis) Node() string { return r.node }

func (r *Redis) Publish(ctx context.Context, env Envelope) error {
	r.deliverer.Deliver(env)

	env.Node = r.node
	body, err := json.Marshal(env)
	if err != nil {
		observability.IncBackplaneError()
		return fmt.Errorf("backplane: encode: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		observability.IncBackplaneError()
		return fmt.Errorf("backplane: publish: %w", err)
	}
	return nil
}

// Run delivers envelopes from other nodes until ctx is done.
func (r *Redis) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("backplane: subscribe: %w", err)
	}
	r.logger.Info("backplane subscribed", zap.String("channel", r.channel), zap.String("node", r.node))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle([]byte(msg.Payload))
		}
	}
}

func (r *Redis) handle(payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		observability.IncBackplaneError()
		r.logger.Warn("backplane: bad envelope", zap.Error(err))
		return
	}
	if env.Node == r.node {
		return
	}
	r.deliverer.Deliver(env)
}

func (r *Redis) Close() error {
	return r.client.Close()
}

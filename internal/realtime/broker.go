package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/StationPortal/internal/config"
	"github.com/router-for-me/StationPortal/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// Publisher fans a message out to every server node.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Broker publishes notifications through redis pub/sub and delivers received
// ones to the local hub. Without a redis client it delivers in-process.
type Broker struct {
	client  *redis.Client
	channel string
	hub     *Hub
	metrics *metrics.Collectors
}

// NewRedisClient returns a client for cfg, or nil when redis is not configured.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewBroker creates a broker. client may be nil.
func NewBroker(client *redis.Client, channel string, hub *Hub, m *metrics.Collectors) *Broker {
	if strings.TrimSpace(channel) == "" {
		channel = config.DefaultForceLogoutChannel
	}
	return &Broker{client: client, channel: channel, hub: hub, metrics: m}
}

// Distributed reports whether messages travel through redis.
func (b *Broker) Distributed() bool { return b.client != nil }

// Ping checks the redis connection. It is a no-op in-process.
func (b *Broker) Ping(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	return b.client.Ping(ctx).Err()
}

// Publish sends msg to every node subscribed to the channel.
func (b *Broker) Publish(ctx context.Context, msg Message) error {
	if b.client == nil {
		b.deliver(msg)
		return nil
	}
	payload, errMarshal := json.Marshal(msg)
	if errMarshal != nil {
		return fmt.Errorf("realtime: encode message: %w", errMarshal)
	}
	if errPublish := b.client.Publish(ctx, b.channel, payload).Err(); errPublish != nil {
		return fmt.Errorf("realtime: publish: %w", errPublish)
	}
	return nil
}

// Run subscribes to the channel and delivers messages until ctx is done.
func (b *Broker) Run(ctx context.Context) error {
	if b.client == nil {
		<-ctx.Done()
		return nil
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = pubsub.Close() }()

	if _, errReceive := pubsub.Receive(ctx); errReceive != nil {
		if errors.Is(errReceive, context.Canceled) {
			return nil
		}
		return fmt.Errorf("realtime: subscribe %s: %w", b.channel, errReceive)
	}
	log.WithField("channel", b.channel).Info("realtime: subscribed to force logout channel")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			msg, errParse := ParseMessage([]byte(raw.Payload))
			if errParse != nil {
				log.WithError(errParse).Warn("realtime: discard malformed broker message")
				continue
			}
			b.deliver(msg)
		}
	}
}

// Close releases the redis client.
func (b *Broker) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func (b *Broker) deliver(msg Message) {
	n := b.hub.Deliver(msg)
	if msg.Type == TypeForceLogout {
		b.metrics.RecordForceLogout(n)
	}
	log.WithFields(log.Fields{"type": msg.Type, "user_id": msg.UserID, "clients": n}).Debug("realtime: message delivered")
}

package redis

import (
	"context"
	"encoding/json"

	"arcade-system/internal/services"
	"arcade-system/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const invalidationChannel = "gateway_invalidation"

// InvalidationRelay mirrors invalidation notices between gateway
// instances over redis pub/sub, so clients attached to one instance see
// mutations made through another. Delivery stays best-effort.
type InvalidationRelay struct {
	client *redis.Client
	log    logger.Logger
}

func NewInvalidationRelay(client *redis.Client, log logger.Logger) *InvalidationRelay {
	return &InvalidationRelay{
		client: client,
		log:    log,
	}
}

func (r *InvalidationRelay) Publish(ctx context.Context, env services.RelayEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, invalidationChannel, data).Err()
}

// Run subscribes and applies remote envelopes until the context ends.
func (r *InvalidationRelay) Run(ctx context.Context, apply func(env services.RelayEnvelope)) error {
	pubsub := r.client.Subscribe(ctx, invalidationChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	r.log.Info("Subscribed to invalidation relay")

	for {
		select {
		case msg := <-ch:
			var env services.RelayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Error("Failed to parse relay envelope", "payload", msg.Payload, "error", err)
				continue
			}
			apply(env)

		case <-ctx.Done():
			r.log.Info("Invalidation relay stopped")
			return ctx.Err()
		}
	}
}

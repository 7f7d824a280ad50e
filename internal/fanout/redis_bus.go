// Package fanout carries edits between server instances over Redis pub/sub.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mi-ganesh/Document-Editor/internal/models"
)

type RedisBus struct {
	rdb        *redis.Client
	channel    string
	instanceID string
	log        *zap.Logger
}

func NewRedisBus(redisAddr, channel string, log *zap.Logger) *RedisBus {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	return NewRedisBusWithClient(rdb, channel, log)
}

func NewRedisBusWithClient(rdb *redis.Client, channel string, log *zap.Logger) *RedisBus {
	return &RedisBus{
		rdb:        rdb,
		channel:    channel,
		instanceID: uuid.New().String()[:8], // short instance id, also used in logs
		log:        log,
	}
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Publish announces an edit made on this instance.
func (b *RedisBus) Publish(ctx context.Context, roomID, code string) error {
	payload, err := json.Marshal(models.RemoteEdit{Origin: b.instanceID, RoomID: roomID, Code: code})
	if err != nil {
		return fmt.Errorf("marshal remote edit: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// Subscribe delivers edits published by other instances until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, deliver func(models.RemoteEdit)) {
	subscriber := b.rdb.Subscribe(ctx, b.channel)
	defer subscriber.Close()
	ch := subscriber.Channel()

	b.log.Info("fan-out subscribed", zap.String("channel", b.channel), zap.String("instance", b.instanceID))

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var edit models.RemoteEdit
			if err := json.Unmarshal([]byte(msg.Payload), &edit); err != nil {
				b.log.Warn("fan-out: failed to parse edit", zap.Error(err))
				continue
			}
			if edit.Origin == b.instanceID {
				continue
			}
			deliver(edit)
		}
	}
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

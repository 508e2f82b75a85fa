package redisstate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisStateRepository 是 StateRepository 接口的 Redis 实现。
// 每房间一个序号计数器和一个人类消息计数器，INCR 保证原子性；
// 事件通过每房间一个的 Pub/Sub 频道扇出，另有一个全局大厅频道。
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "ci:" // 默认前缀 "ci:" (collaborative ideation)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key / Channel Helpers ---

func (r *RedisStateRepository) roomSeqKey(roomID uint) string {
	return fmt.Sprintf("%sroom:%d:seq", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) roomHumanCountKey(roomID uint) string {
	return fmt.Sprintf("%sroom:%d:human_count", r.keyPrefix, roomID)
}

// RoomChannel 返回房间事件的 Pub/Sub 频道名。Hub 订阅时使用同一命名。
func RoomChannel(keyPrefix string, roomID uint) string {
	return fmt.Sprintf("%sroom:%d:events", keyPrefix, roomID)
}

// LobbyChannel 返回大厅事件的 Pub/Sub 频道名。
func LobbyChannel(keyPrefix string) string {
	return keyPrefix + "lobby:events"
}

// --- StateRepository Interface Implementation ---

// NextMessageSeq 原子地分配房间内下一个消息序号。
// INCR 是每房间消息全序的唯一序列化点，key 不设过期：
// 序号断档会让订阅端误判缺口。
func (r *RedisStateRepository) NextMessageSeq(ctx context.Context, roomID uint) (uint64, error) {
	key := r.roomSeqKey(roomID)
	seq, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to increment message seq for room %d on key %s: %w", roomID, key, err)
	}
	return uint64(seq), nil
}

// IncrHumanMessageCount 原子地递增房间的人类消息计数并返回新值。
func (r *RedisStateRepository) IncrHumanMessageCount(ctx context.Context, roomID uint) (int64, error) {
	key := r.roomHumanCountKey(roomID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to increment human message count for room %d on key %s: %w", roomID, key, err)
	}
	return count, nil
}

// PublishRoomEvent 将事件负载发布到房间频道。
func (r *RedisStateRepository) PublishRoomEvent(ctx context.Context, roomID uint, payload []byte) error {
	channel := RoomChannel(r.keyPrefix, roomID)
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"room_id":      roomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish event to channel %s: %w", channel, err)
	}
	return nil
}

// PublishLobbyEvent 将事件负载发布到大厅频道。
func (r *RedisStateRepository) PublishLobbyEvent(ctx context.Context, payload []byte) error {
	channel := LobbyChannel(r.keyPrefix)
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: failed to publish event to lobby channel %s: %w", channel, err)
	}
	return nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
// 使用 Pipeline 减少网络往返；INCR 本身是原子的。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, duration)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}

package repository

import (
	"context"
	"time"
)

// StateRepository 定义了与房间实时状态相关的操作，由 Redis 实现。
// 每房间的序号计数器与人类消息计数器是仅有的需要独占访问纪律的共享状态，
// 通过 Redis 的原子 INCR 实现序列化，不同房间互不影响。
type StateRepository interface {
	// NextMessageSeq 原子地分配并返回房间内下一个消息序号。
	NextMessageSeq(ctx context.Context, roomID uint) (uint64, error)

	// IncrHumanMessageCount 原子地递增房间的人类消息计数并返回新值。
	// 助手消息不计入。助手触发节奏 (count mod 3 == 0) 基于这个计数。
	IncrHumanMessageCount(ctx context.Context, roomID uint) (int64, error)

	// PublishRoomEvent 将事件负载发布到房间的 Pub/Sub 频道。
	PublishRoomEvent(ctx context.Context, roomID uint, payload []byte) error

	// PublishLobbyEvent 将事件负载发布到大厅频道（房间列表失效通知）。
	PublishLobbyEvent(ctx context.Context, payload []byte) error

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	// 返回 true 表示超限。
	CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error)
}

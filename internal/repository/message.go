package repository

import (
	"context"

	"collaborative-ideation/internal/domain"
)

// MessageRepository 定义了消息记录的存储和查询。消息只追加，永不修改。
type MessageRepository interface {
	// Append 持久化一条新消息。Seq 必须已由调用方分配；
	// (room_id, seq) 唯一约束冲突时返回 ErrDuplicateEntry。
	Append(ctx context.Context, msg *domain.Message) error

	// ListRecent 返回房间最近的 limit 条消息，按 Seq 升序。
	// 用于订阅时的回填和助手的上下文窗口。
	ListRecent(ctx context.Context, roomID uint, limit int) ([]domain.Message, error)

	// ListRange 返回房间内 Seq 位于 [fromSeq, toSeq] 区间的消息，按 Seq 升序。
	// 用于回填与实时流拼接出现缺口时的补齐。
	ListRange(ctx context.Context, roomID uint, fromSeq, toSeq uint64) ([]domain.Message, error)
}

package repository

import (
	"context"

	"collaborative-ideation/internal/domain"
)

// SuggestionRepository 定义了助手建议的存储和查询。
type SuggestionRepository interface {
	// Append 持久化一条新建议。
	Append(ctx context.Context, suggestion *domain.Suggestion) error

	// ListRecent 返回房间最近的 limit 条建议，按创建时间倒序。
	ListRecent(ctx context.Context, roomID uint, limit int) ([]domain.Suggestion, error)

	// TrimOld 对每个房间只保留最近 keep 条建议，删除更早的记录。
	// 由周期性后台任务调用，限制存储增长；展示上限由 ListRecent 的 limit 控制。
	TrimOld(ctx context.Context, keep int) error
}

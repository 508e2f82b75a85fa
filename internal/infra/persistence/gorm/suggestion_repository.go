package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"collaborative-ideation/internal/domain"
)

// GormSuggestionRepository 是 SuggestionRepository 接口的 GORM 实现
type GormSuggestionRepository struct {
	db *gorm.DB
}

// NewGormSuggestionRepository 创建 GormSuggestionRepository 实例
func NewGormSuggestionRepository(db *gorm.DB) *GormSuggestionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormSuggestionRepository")
	}
	return &GormSuggestionRepository{db: db}
}

// Append 实现建议持久化
func (r *GormSuggestionRepository) Append(ctx context.Context, suggestion *domain.Suggestion) error {
	err := r.db.WithContext(ctx).Create(suggestion).Error
	if err != nil {
		return fmt.Errorf("gorm: append suggestion (room %d): %w", suggestion.RoomID, err)
	}
	return nil
}

// ListRecent 返回房间最近 limit 条建议，按创建时间倒序
func (r *GormSuggestionRepository) ListRecent(ctx context.Context, roomID uint, limit int) ([]domain.Suggestion, error) {
	if limit <= 0 {
		limit = domain.SuggestionDisplayLimit
	}
	var suggestions []domain.Suggestion
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&suggestions).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list recent suggestions for room %d: %w", roomID, err)
	}
	return suggestions, nil
}

// TrimOld 对每个房间只保留最近 keep 条建议。
// MySQL 不允许 DELETE 时子查询同一张表，所以先逐房间找出保留阈值再删除。
func (r *GormSuggestionRepository) TrimOld(ctx context.Context, keep int) error {
	if keep <= 0 {
		return fmt.Errorf("gorm: trim suggestions: keep must be positive, got %d", keep)
	}

	var roomIDs []uint
	err := r.db.WithContext(ctx).Model(&domain.Suggestion{}).
		Distinct("room_id").
		Pluck("room_id", &roomIDs).Error
	if err != nil {
		return fmt.Errorf("gorm: list rooms with suggestions: %w", err)
	}

	for _, roomID := range roomIDs {
		var cutoff domain.Suggestion
		err := r.db.WithContext(ctx).
			Where("room_id = ?", roomID).
			Order("id DESC").
			Offset(keep - 1).
			First(&cutoff).Error
		if err != nil {
			// 该房间的建议数不足 keep 条，无需裁剪
			continue
		}
		if err := r.db.WithContext(ctx).
			Where("room_id = ? AND id < ?", roomID, cutoff.ID).
			Delete(&domain.Suggestion{}).Error; err != nil {
			return fmt.Errorf("gorm: trim suggestions for room %d: %w", roomID, err)
		}
	}
	return nil
}

package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"collaborative-ideation/internal/domain"
	"collaborative-ideation/internal/repository"
)

// GormMessageRepository 是 MessageRepository 接口的 GORM 实现
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GormMessageRepository 实例
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// Append 实现消息持久化。没有 Update/Delete 对应方法：消息只追加。
func (r *GormMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	err := r.db.WithContext(ctx).Create(msg).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: append message (room %d, seq %d): %w", msg.RoomID, msg.Seq, err)
	}
	return nil
}

// ListRecent 返回房间最近 limit 条消息，按 Seq 升序。
// 先按 Seq 倒序取 limit 条，再在内存中反转，避免全表排序。
func (r *GormMessageRepository) ListRecent(ctx context.Context, roomID uint, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list recent messages for room %d: %w", roomID, err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListRange 返回房间内 Seq 位于 [fromSeq, toSeq] 的消息，按 Seq 升序。
func (r *GormMessageRepository) ListRange(ctx context.Context, roomID uint, fromSeq, toSeq uint64) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND seq BETWEEN ? AND ?", roomID, fromSeq, toSeq).
		Order("seq ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list message range [%d, %d] for room %d: %w", fromSeq, toSeq, roomID, err)
	}
	return messages, nil
}

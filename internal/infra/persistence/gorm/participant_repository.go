package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"collaborative-ideation/internal/domain"
	"collaborative-ideation/internal/repository"
)

// GormParticipantRepository 是 ParticipantRepository 接口的 GORM 实现
type GormParticipantRepository struct {
	db *gorm.DB
}

// NewGormParticipantRepository 创建 GormParticipantRepository 实例
func NewGormParticipantRepository(db *gorm.DB) *GormParticipantRepository {
	if db == nil {
		panic("database connection cannot be nil for GormParticipantRepository")
	}
	return &GormParticipantRepository{db: db}
}

// Admit 在单个事务内完成容量检查和成员插入。
// 事务用 SELECT ... FOR UPDATE 锁定房间行，使并发的 Admit 在同一房间上串行化：
// 持锁期间统计成员数、校验容量、再插入，占用数不可能越过容量。
// 不同房间锁的是不同的行，互不阻塞。
// 既有成员的判定先于容量判定：满员房间里的老成员重复加入
// 返回 ErrDuplicateEntry 而不是 ErrRoomFull，幂等语义与占用无关。
func (r *GormParticipantRepository) Admit(ctx context.Context, roomID, userID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room domain.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrRoomNotFound
			}
			return fmt.Errorf("gorm: lock room %d for admit: %w", roomID, err)
		}

		var existing int64
		if err := tx.Model(&domain.Participant{}).
			Where("room_id = ? AND user_id = ?", roomID, userID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("gorm: check existing membership (room %d, user %d): %w", roomID, userID, err)
		}
		if existing > 0 {
			return repository.ErrDuplicateEntry
		}

		var count int64
		if err := tx.Model(&domain.Participant{}).
			Where("room_id = ?", roomID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("gorm: count participants for room %d: %w", roomID, err)
		}
		if count >= int64(room.Capacity) {
			return repository.ErrRoomFull
		}

		participant := domain.Participant{RoomID: roomID, UserID: userID}
		if err := tx.Create(&participant).Error; err != nil {
			// 唯一约束 (room_id, user_id) 冲突不是错误，映射给调用方做幂等处理
			if isDuplicateEntry(err) {
				return repository.ErrDuplicateEntry
			}
			return fmt.Errorf("gorm: insert participant (room %d, user %d): %w", roomID, userID, err)
		}
		return nil
	})
	return err
}

// Exists 实现成员关系存在性检查
func (r *GormParticipantRepository) Exists(ctx context.Context, roomID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: check membership (room %d, user %d): %w", roomID, userID, err)
	}
	return count > 0, nil
}

// CountByRoom 实现房间成员数统计
func (r *GormParticipantRepository) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("room_id = ?", roomID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count participants for room %d: %w", roomID, err)
	}
	return count, nil
}

// Remove 实现成员关系删除
func (r *GormParticipantRepository) Remove(ctx context.Context, roomID, userID uint) error {
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&domain.Participant{})
	if result.Error != nil {
		return fmt.Errorf("gorm: remove participant (room %d, user %d): %w", roomID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

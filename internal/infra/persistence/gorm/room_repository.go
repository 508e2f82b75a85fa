package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"collaborative-ideation/internal/domain"
	"collaborative-ideation/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// Save 实现保存房间信息
func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Create(room).Error
	if err != nil {
		if isDuplicateEntry(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room (name: %s): %w", room.Name, err)
	}
	return nil
}

// FindByID 实现根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %d: %w", id, err)
	}
	return &room, nil
}

// ListWithOccupancy 实现房间列表查询：LEFT JOIN 成员表统计在线人数，按创建时间倒序。
// 在线人数是派生值，每次查询即时计算，不做缓存。
func (r *GormRoomRepository) ListWithOccupancy(ctx context.Context) ([]repository.RoomWithOccupancy, error) {
	var rows []repository.RoomWithOccupancy
	err := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Select("rooms.*, COUNT(participants.id) AS occupancy").
		Joins("LEFT JOIN participants ON participants.room_id = rooms.id").
		Group("rooms.id").
		Order("rooms.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list rooms with occupancy: %w", err)
	}
	return rows, nil
}

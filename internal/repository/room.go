package repository

import (
	"context"

	"collaborative-ideation/internal/domain"
)

// RoomWithOccupancy 是房间列表查询的一行：房间元数据加上当前成员数。
type RoomWithOccupancy struct {
	domain.Room
	Occupancy int64 `json:"occupancy"`
}

// RoomRepository 定义了房间数据的存储和检索操作。
type RoomRepository interface {
	// Save 保存房间信息。创建成功后填充 room.ID 与 CreatedAt。
	Save(ctx context.Context, room *domain.Room) error

	// FindByID 根据房间 ID 查找房间。
	// 如果房间不存在，返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// ListWithOccupancy 返回全部房间及各自的当前成员数，按创建时间倒序。
	ListWithOccupancy(ctx context.Context) ([]RoomWithOccupancy, error)
}

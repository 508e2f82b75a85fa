package repository

import "context"

// ParticipantRepository 定义了房间成员关系的存储操作。
type ParticipantRepository interface {
	// Admit 在容量约束下准入一个成员。容量检查与插入必须是同一个原子单元
	// （同一事务内锁定房间行、统计成员数、再插入），不允许两步的先查后写。
	// 返回值约定：
	//   - nil:               准入成功
	//   - ErrRoomNotFound:   房间不存在
	//   - ErrDuplicateEntry: (room, user) 关系已存在（幂等加入，调用方不应视为错误）；
	//                        优先于 ErrRoomFull，与房间当前占用无关
	//   - ErrRoomFull:       成员数已达房间容量
	Admit(ctx context.Context, roomID, userID uint) error

	// Exists 检查 (room, user) 成员关系是否存在。
	Exists(ctx context.Context, roomID, userID uint) (bool, error)

	// CountByRoom 统计房间当前成员数。
	CountByRoom(ctx context.Context, roomID uint) (int64, error)

	// Remove 删除成员关系（显式离开/管理操作）。关系不存在时返回 ErrNotFound。
	Remove(ctx context.Context, roomID, userID uint) error
}

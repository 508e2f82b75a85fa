package domain

import "time"

// Participant 表示用户与房间之间的成员关系。
// (room_id, user_id) 组合唯一：加入是幂等的，不是累加的。
type Participant struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	RoomID   uint      `gorm:"uniqueIndex:idx_room_user;not null" json:"room_id"`
	UserID   uint      `gorm:"uniqueIndex:idx_room_user;not null" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

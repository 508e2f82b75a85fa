package domain

import "time"

// Message 表示房间内的一条聊天消息。只追加：创建后永不修改或删除。
// 房间内的全序由 Seq 定义（Redis 每房间计数器分配，单调递增），
// 所有订阅者都按这个顺序渲染。
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RoomID      uint      `gorm:"uniqueIndex:idx_room_seq;not null" json:"room_id"` // 所属房间 ID
	UserID      *uint     `gorm:"index" json:"user_id"`                             // 作者用户 ID；助手消息为 nil
	Body        string    `gorm:"type:text;not null" json:"body"`                   // 消息正文
	IsAssistant bool      `gorm:"not null;default:false" json:"is_assistant"`       // 是否为助手生成的消息
	Seq         uint64    `gorm:"uniqueIndex:idx_room_seq;not null" json:"seq"`     // 房间内单调递增序号
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

package domain

import "time"

// DefaultRoomCapacity 是新房间的默认人数上限。
const DefaultRoomCapacity = 5

// Room 表示一个协作头脑风暴房间。
// 创建后除派生的在线人数外不可变更；删除仅由外部管理操作完成。
type Room struct {
	ID          uint      `gorm:"primaryKey" json:"id"`                   // 房间唯一标识符 (主键)
	Name        string    `gorm:"size:191;not null" json:"name"`          // 房间名称，非空
	Theme       string    `gorm:"size:191;not null" json:"theme"`         // 讨论主题，非空
	Description string    `gorm:"type:text" json:"description"`           // 自由文本描述
	CreatorID   uint      `gorm:"index;not null" json:"creator_id"`       // 创建者用户 ID (外键关联 User.ID)
	Capacity    int       `gorm:"not null;default:5" json:"capacity"`     // 人数上限，固定正整数
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"` // 创建时间 (GORM 自动填充)
}

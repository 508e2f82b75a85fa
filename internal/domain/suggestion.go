package domain

import "time"

// 建议分类，对应助手回复内容的简单关键词启发式判定。
const (
	SuggestionIdea       = "idea"
	SuggestionSummary    = "summary"
	SuggestionEngagement = "engagement"
)

// SuggestionDisplayLimit 是读取侧展示的最近建议条数上限。
// 更早的建议仍然保留在存储中，只是不再展示。
const SuggestionDisplayLimit = 5

// Suggestion 表示助手在侧边栏给出的一条建议。独立的只追加读取通道。
type Suggestion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"index;not null" json:"room_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Category  string    `gorm:"size:20;not null" json:"category"` // idea / summary / engagement
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

package domain

// 房间事件类型。消息与建议走同一条 Pub/Sub 频道，
// 订阅者按 Seq 对消息事件做去重和补齐；建议事件没有序号，直接透传。
const (
	EventTypeMessage      = "message"
	EventTypeSuggestion   = "suggestion"
	EventTypeRoomsChanged = "rooms_changed" // 大厅频道：房间列表失效通知
)

// RoomEvent 是发布到房间频道以及推送给 WebSocket 客户端的事件信封。
type RoomEvent struct {
	Type       string      `json:"type"`
	Seq        uint64      `json:"seq,omitempty"` // 仅消息事件携带
	Message    *Message    `json:"message,omitempty"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

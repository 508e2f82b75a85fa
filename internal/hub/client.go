package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// clientState 是订阅的交付状态。
// Backfilling 期间到达的实时事件只缓冲不交付，Live 后按序号拼接交付。
type clientState int

const (
	stateBackfilling clientState = iota
	stateLive
)

// liveEvent 是回填期间缓冲的一条实时事件。
type liveEvent struct {
	seq     uint64
	payload []byte
}

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	roomID uint
	userID uint
	lobby  bool        // 大厅客户端只接收房间列表失效事件，没有回填
	send   chan []byte // 向此客户端发送消息的缓冲通道

	// 交付状态，由回填 goroutine 和房间事件泵并发访问。
	// lastSeq 只由持有交付权 (delivering) 的 goroutine 读写，
	// 交付权的移交经由 mu 同步。
	mu         sync.Mutex
	state      clientState
	delivering bool
	lastSeq    uint64 // 已交付的最大消息序号
	pending    []liveEvent
	sendClosed bool
	sendOnce   sync.Once
}

// NewClient 创建一个订阅指定房间的客户端。
func NewClient(hub *Hub, conn *websocket.Conn, roomID uint, userID uint) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		roomID: roomID,
		userID: userID,
		send:   make(chan []byte, 256),
	}
}

// NewLobbyClient 创建一个订阅大厅的客户端。
func NewLobbyClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		lobby:  true,
		send:   make(chan []byte, 16),
	}
}

// Run 启动客户端的读写 goroutine。
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) RoomID() uint { return c.roomID }
func (c *Client) UserID() uint { return c.userID }
func (c *Client) CloseConn()   { c.conn.Close() }

// deliverLive 交付一条来自房间频道的实时事件。
// Backfilling 状态下只缓冲；已有 goroutine 持有交付权时同样缓冲，
// 由持有者在当前交付结束后按到达顺序重放。调用方永远不会
// 因为某个客户端正在补缺而被阻塞。
func (c *Client) deliverLive(seq uint64, payload []byte) {
	c.mu.Lock()
	if c.state == stateBackfilling || c.delivering {
		c.pending = append(c.pending, liveEvent{seq: seq, payload: payload})
		c.mu.Unlock()
		return
	}
	c.delivering = true
	c.mu.Unlock()

	c.deliver(seq, payload)
	c.drainPending()
}

// finishBackfill 结束回填阶段：记录回填末尾的序号，切换到 Live，
// 然后带着交付权按拼接规则重放缓冲的实时事件。
func (c *Client) finishBackfill(lastSeq uint64) {
	c.mu.Lock()
	c.lastSeq = lastSeq
	c.state = stateLive
	c.delivering = true
	c.mu.Unlock()

	c.drainPending()
}

// deliver 在持有交付权的前提下交付一条事件。
// seq 为 0 的事件（建议、通知）没有顺序约束，直接透传；
// 重复 (seq 不大于 lastSeq) 丢弃，缺口触发一次补齐查询。
// 补齐查询不持有 c.mu，期间到达的事件由 deliverLive 缓冲。
func (c *Client) deliver(seq uint64, payload []byte) {
	if seq == 0 {
		c.enqueue(payload)
		return
	}
	if seq <= c.lastSeq {
		// 回填和实时流的重叠部分
		return
	}
	if seq > c.lastSeq+1 {
		// 接缝或流中出现缺口，补齐一次。落库失败作废的序号
		// 在存储里本来就不存在，查询结果为空也视为补齐完成
		for _, frame := range c.hub.fetchRange(c.roomID, c.lastSeq+1, seq-1) {
			c.enqueue(frame)
		}
	}
	c.enqueue(payload)
	c.lastSeq = seq
}

// drainPending 重放交付期间缓冲的事件，清空后释放交付权。
func (c *Client) drainPending() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.delivering = false
			c.mu.Unlock()
			return
		}
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()

		for _, ev := range batch {
			c.deliver(ev.seq, ev.payload)
		}
	}
}

// enqueue 非阻塞地把一帧放入发送队列。注销后的晚到帧直接丢弃，
// 不会写入已关闭的通道。队列满说明客户端写不过来，
// 丢弃该帧并记录，由 ping 超时机制最终断开慢客户端。
func (c *Client) enqueue(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- payload:
	default:
		logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).
			Warn("Client send channel full, dropping frame")
	}
}

// closeSend 关闭发送通道，触发 WritePump 退出。只会执行一次。
// sendClosed 先在锁内置位，在途的 enqueue 结束后通道才真正关闭。
func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		c.mu.Lock()
		c.sendClosed = true
		c.mu.Unlock()
		close(c.send)
	})
}

// ReadPump 消费来自对端的帧直到连接断开，然后向 Hub 注销自己。
// 客户端到服务端没有业务帧，收到的文本消息一律忽略。
func (c *Client) ReadPump() {
	defer func() {
		// 经由 QueueMessage 注销：Hub 停止后通道已关闭，直接写会 panic
		if !c.hub.QueueMessage(HubMessage{Type: "unregister", Client: c}) {
			logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).
				Warn("Hub unavailable, unregister message dropped")
		}
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).
			Info("ReadPump exited, client unregistered")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, _, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			return
		}
		if messageType == websocket.TextMessage {
			logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).
				Debug("Ignoring inbound text frame, subscription stream is one-way")
		}
	}
}

// WritePump 把 send 通道里的帧写入 WebSocket 连接，并周期性发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).Info("WritePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭，注销完成
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).
					WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).
					WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

// Package hub 把 Redis Pub/Sub 上的房间事件桥接到 WebSocket 客户端。
// 每个有本地客户端的房间持有一个订阅 goroutine，房间清空时回收。
// 订阅的交付契约：先回填后实时，接缝处按序号去重和补缺。
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/domain"
	redisstate "collaborative-ideation/internal/infra/state/redis"
	"collaborative-ideation/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用。
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

// fetchTimeout 是单次缺口补齐查询的超时。
const fetchTimeout = 3 * time.Second

// HubMessage 定义了在 Hub 内部通道传递的消息类型。
type HubMessage struct {
	Type   string // "register", "unregister"
	Client *Client
}

// roomSub 记录一个房间的 Pub/Sub 订阅，便于房间清空时关闭。
type roomSub struct {
	pubsub *redis.PubSub
}

// Hub 维护活跃客户端集合，并为每个活跃房间维护一条 Redis 订阅。
type Hub struct {
	messageChan chan HubMessage

	// 按 RoomID 组织的房间客户端集合，以及大厅客户端集合
	rooms   map[uint]map[*Client]bool
	lobby   map[*Client]bool
	subs    map[uint]*roomSub
	closed  bool // Stop 之后置位，QueueMessage 一律拒绝
	roomsMu sync.RWMutex

	chatService *service.ChatService
	rdb         *redis.Client
	keyPrefix   string

	lobbySub *redis.PubSub
}

// NewHub 创建 Hub 实例。keyPrefix 必须与 StateRepository 使用的前缀一致。
func NewHub(chatService *service.ChatService, rdb *redis.Client, keyPrefix string) *Hub {
	if chatService == nil {
		panic("ChatService cannot be nil for Hub")
	}
	if rdb == nil {
		panic("redis client cannot be nil for Hub")
	}
	if keyPrefix == "" {
		keyPrefix = "ci:"
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[uint]map[*Client]bool),
		lobby:       make(map[*Client]bool),
		subs:        make(map[uint]*roomSub),
		chatService: chatService,
		rdb:         rdb,
		keyPrefix:   keyPrefix,
	}
}

// Run 启动 Hub 的主事件处理循环和大厅订阅。
// 应该在单独的 goroutine 中运行，messageChan 关闭时退出。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	h.lobbySub = h.rdb.Subscribe(context.Background(), redisstate.LobbyChannel(h.keyPrefix))
	go h.pumpLobby(h.lobbySub)

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		default:
			log.Warnf("Received unknown hub message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

// Stop 关闭所有订阅和消息通道，触发 Run 退出。幂等。
// closed 先在写锁内置位，之后 QueueMessage 一律拒绝；
// 持读锁的在途发送在通道关闭前已经完成，关闭不会与发送并发。
func (h *Hub) Stop() {
	h.roomsMu.Lock()
	if h.closed {
		h.roomsMu.Unlock()
		return
	}
	h.closed = true
	for roomID, sub := range h.subs {
		_ = sub.pubsub.Close()
		delete(h.subs, roomID)
	}
	h.roomsMu.Unlock()

	if h.lobbySub != nil {
		_ = h.lobbySub.Close()
	}
	close(h.messageChan)
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 表示成功入队；Hub 已停止或队列已满时返回 false。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	if h.closed {
		logrus.WithField("message_type", msg.Type).Debug("Hub stopped, dropping message")
		return false
	}
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

// registerClient 处理客户端注册。房间的第一个客户端会启动该房间的订阅。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": client.roomID,
		"user_id": client.userID,
		"lobby":   client.lobby,
	})

	if client.lobby {
		h.roomsMu.Lock()
		if h.closed {
			h.roomsMu.Unlock()
			client.closeSend()
			return
		}
		h.lobby[client] = true
		h.roomsMu.Unlock()
		logCtx.Info("Lobby client registered")
		return
	}

	h.roomsMu.Lock()
	// 通道关闭后循环仍会排空缓冲的消息，停止后不再接纳新订阅
	if h.closed {
		h.roomsMu.Unlock()
		client.closeSend()
		return
	}
	if _, ok := h.rooms[client.roomID]; !ok {
		h.rooms[client.roomID] = make(map[*Client]bool)
		pubsub := h.rdb.Subscribe(context.Background(), redisstate.RoomChannel(h.keyPrefix, client.roomID))
		h.subs[client.roomID] = &roomSub{pubsub: pubsub}
		go h.pumpRoom(client.roomID, pubsub)
		logCtx.Info("Room subscription started")
	}
	h.rooms[client.roomID][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	// 回填在订阅建立之后进行：回填期间到达的实时事件由客户端缓冲，
	// 回填结束时按序号拼接，保证接缝处无缺口也无重复
	go h.runBackfill(client)
}

// unregisterClient 处理客户端注销。房间清空时关闭对应订阅。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": client.roomID,
		"user_id": client.userID,
		"lobby":   client.lobby,
	})

	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	if client.lobby {
		if _, ok := h.lobby[client]; ok {
			delete(h.lobby, client)
			client.closeSend()
			logCtx.Info("Lobby client unregistered")
		}
		return
	}

	roomClients, ok := h.rooms[client.roomID]
	if !ok {
		logCtx.Warn("Room not found during client unregister")
		return
	}
	if _, exists := roomClients[client]; !exists {
		logCtx.Warn("Client not found in room during unregister")
		return
	}
	delete(roomClients, client)
	client.closeSend()

	if len(roomClients) == 0 {
		delete(h.rooms, client.roomID)
		if sub, ok := h.subs[client.roomID]; ok {
			_ = sub.pubsub.Close()
			delete(h.subs, client.roomID)
		}
		logCtx.Info("Room empty, subscription closed")
	}
	logCtx.Info("Client unregistered from Hub")
}

// runBackfill 向新客户端发送历史消息，然后把它切换到实时状态。
func (h *Hub) runBackfill(client *Client) {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   client.roomID,
		"user_id":   client.userID,
		"operation": "runBackfill",
	})

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	msgs, err := h.chatService.Backfill(ctx, client.roomID, service.BackfillLimit)
	if err != nil {
		// 回填失败时客户端仍然切到实时状态：后续事件照常交付，
		// 历史视图由客户端通过 HTTP 接口补救
		logCtx.WithError(err).Error("Backfill failed, promoting client to live with empty history")
		client.enqueue([]byte(`{"type":"error","message":"failed to load message history"}`))
		client.finishBackfill(0)
		return
	}

	var lastSeq uint64
	for i := range msgs {
		payload, err := json.Marshal(domain.RoomEvent{
			Type:    domain.EventTypeMessage,
			Seq:     msgs[i].Seq,
			Message: &msgs[i],
		})
		if err != nil {
			logCtx.WithError(err).Error("Failed to marshal backfill message")
			continue
		}
		client.enqueue(payload)
		lastSeq = msgs[i].Seq
	}
	client.finishBackfill(lastSeq)
	logCtx.WithFields(logrus.Fields{"count": len(msgs), "last_seq": lastSeq}).Info("Backfill complete, client is live")
}

// pumpRoom 把一个房间频道上的事件交付给该房间的所有本地客户端。
// pubsub 关闭时 Channel 耗尽，goroutine 退出。
func (h *Hub) pumpRoom(roomID uint, pubsub *redis.PubSub) {
	logCtx := logrus.WithFields(logrus.Fields{"component": "hub", "room_id": roomID})
	for msg := range pubsub.Channel() {
		var event domain.RoomEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logCtx.WithError(err).Warn("Dropping malformed room event")
			continue
		}

		h.roomsMu.RLock()
		clients := make([]*Client, 0, len(h.rooms[roomID]))
		for client := range h.rooms[roomID] {
			clients = append(clients, client)
		}
		h.roomsMu.RUnlock()

		for _, client := range clients {
			client.deliverLive(event.Seq, []byte(msg.Payload))
		}
	}
	logCtx.Debug("Room event pump exited")
}

// pumpLobby 把大厅频道上的事件交付给所有大厅客户端。
func (h *Hub) pumpLobby(pubsub *redis.PubSub) {
	logCtx := logrus.WithField("component", "hub")
	for msg := range pubsub.Channel() {
		h.roomsMu.RLock()
		clients := make([]*Client, 0, len(h.lobby))
		for client := range h.lobby {
			clients = append(clients, client)
		}
		h.roomsMu.RUnlock()

		for _, client := range clients {
			client.enqueue([]byte(msg.Payload))
		}
	}
	logCtx.Debug("Lobby event pump exited")
}

// fetchRange 拉取缺口区间内的消息并序列化为事件帧，按序号升序返回。
func (h *Hub) fetchRange(roomID uint, fromSeq, toSeq uint64) [][]byte {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	msgs, err := h.chatService.FetchRange(ctx, roomID, fromSeq, toSeq)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id": roomID, "from_seq": fromSeq, "to_seq": toSeq,
		}).Error("Gap re-fetch failed, range skipped")
		return nil
	}

	frames := make([][]byte, 0, len(msgs))
	for i := range msgs {
		payload, err := json.Marshal(domain.RoomEvent{
			Type:    domain.EventTypeMessage,
			Seq:     msgs[i].Seq,
			Message: &msgs[i],
		})
		if err != nil {
			continue
		}
		frames = append(frames, payload)
	}
	return frames
}

package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/domain"
	"collaborative-ideation/internal/repository"
)

// AssistTriggerInterval 是触发一次助手周期所需的人类消息数。
const AssistTriggerInterval = 3

// BackfillLimit 是订阅时回填的最近消息条数。
const BackfillLimit = 50

// AssistEnqueuer 抽象助手周期任务的投递，由 tasks 包的 asynq 客户端实现。
type AssistEnqueuer interface {
	EnqueueAssistCycle(ctx context.Context, roomID uint) error
}

// ChatService 负责房间内消息的发布、回填和建议读取。
// 发布路径的顺序是固定的：分配序号、落库、再广播。
// 落库失败时消息不广播，序号留下缺口，订阅端按缺失序号容忍。
type ChatService struct {
	messageRepo    repository.MessageRepository
	suggestionRepo repository.SuggestionRepository
	stateRepo      repository.StateRepository
	enqueuer       AssistEnqueuer
}

// NewChatService 创建 ChatService 实例。
func NewChatService(
	messageRepo repository.MessageRepository,
	suggestionRepo repository.SuggestionRepository,
	stateRepo repository.StateRepository,
	enqueuer AssistEnqueuer,
) *ChatService {
	if messageRepo == nil || suggestionRepo == nil || stateRepo == nil || enqueuer == nil {
		panic("all dependencies must be non-nil for ChatService")
	}
	return &ChatService{
		messageRepo:    messageRepo,
		suggestionRepo: suggestionRepo,
		stateRepo:      stateRepo,
		enqueuer:       enqueuer,
	}
}

// PostMessage 在房间内发布一条消息并返回持久化后的记录。
// userID 为 nil 表示助手消息；助手消息不递增人类消息计数，
// 所以助手自己的输出不会引发下一次触发。
func (s *ChatService) PostMessage(ctx context.Context, roomID uint, userID *uint, body string, isAssistant bool) (*domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "is_assistant": isAssistant})
	if userID != nil {
		logCtx = logCtx.WithField("user_id", *userID)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrValidation
	}

	seq, err := s.stateRepo.NextMessageSeq(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to allocate message sequence number")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("seq", seq)

	msg := &domain.Message{
		RoomID:      roomID,
		UserID:      userID,
		Body:        body,
		IsAssistant: isAssistant,
		Seq:         seq,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.messageRepo.Append(ctx, msg); err != nil {
		// 已分配的序号作废，历史中留下缺口
		logCtx.WithError(err).Error("Failed to persist message, sequence number abandoned")
		return nil, ErrInternalServer
	}

	// 先落库后广播：订阅端收到的事件一定能在存储中找到
	s.publishMessageEvent(ctx, msg, logCtx)

	if !isAssistant {
		s.maybeTriggerAssist(ctx, roomID, logCtx)
	}

	logCtx.Info("Message posted")
	return msg, nil
}

// Backfill 返回房间最近的消息，按序号升序，供订阅端建立初始视图。
func (s *ChatService) Backfill(ctx context.Context, roomID uint, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = BackfillLimit
	}
	msgs, err := s.messageRepo.ListRecent(ctx, roomID, limit)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to backfill messages")
		return nil, ErrInternalServer
	}
	return msgs, nil
}

// FetchRange 返回房间内序号落在 [fromSeq, toSeq] 的消息，按序号升序。
// 订阅端在回填与实时流之间发现缺口时调用一次补齐。
func (s *ChatService) FetchRange(ctx context.Context, roomID uint, fromSeq, toSeq uint64) ([]domain.Message, error) {
	msgs, err := s.messageRepo.ListRange(ctx, roomID, fromSeq, toSeq)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id": roomID, "from_seq": fromSeq, "to_seq": toSeq,
		}).Error("Failed to fetch message range")
		return nil, ErrInternalServer
	}
	return msgs, nil
}

// ListSuggestions 返回房间最近的助手建议，按时间倒序，条数受展示上限约束。
func (s *ChatService) ListSuggestions(ctx context.Context, roomID uint) ([]domain.Suggestion, error) {
	suggestions, err := s.suggestionRepo.ListRecent(ctx, roomID, domain.SuggestionDisplayLimit)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to list suggestions")
		return nil, ErrInternalServer
	}
	return suggestions, nil
}

// publishMessageEvent 向房间频道广播消息事件。
// 广播失败不影响发布结果：消息已持久化，订阅端重连回填后可见。
func (s *ChatService) publishMessageEvent(ctx context.Context, msg *domain.Message, logCtx *logrus.Entry) {
	payload, err := json.Marshal(domain.RoomEvent{
		Type:    domain.EventTypeMessage,
		Seq:     msg.Seq,
		Message: msg,
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal message event")
		return
	}
	if err := s.stateRepo.PublishRoomEvent(ctx, msg.RoomID, payload); err != nil {
		logCtx.WithError(err).Warn("Failed to publish message event, subscribers will catch up on reconnect")
	}
}

// maybeTriggerAssist 递增人类消息计数，计数到达间隔倍数时投递助手周期任务。
// 投递是 fire-and-forget：失败只记录，消息发布本身已经完成。
func (s *ChatService) maybeTriggerAssist(ctx context.Context, roomID uint, logCtx *logrus.Entry) {
	count, err := s.stateRepo.IncrHumanMessageCount(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to increment human message count, assist cadence skipped")
		return
	}
	if count%AssistTriggerInterval != 0 {
		return
	}
	if err := s.enqueuer.EnqueueAssistCycle(ctx, roomID); err != nil {
		logCtx.WithError(err).WithField("human_count", count).
			Error("Failed to enqueue assist cycle task")
		return
	}
	logCtx.WithField("human_count", count).Info("Assist cycle enqueued")
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/completion"
	"collaborative-ideation/internal/domain"
	"collaborative-ideation/internal/repository"
)

// assistContextWindow 是喂给补全服务的最近消息条数。
const assistContextWindow = 5

// defaultAssistTimeout 是单次补全调用的默认超时。
const defaultAssistTimeout = 8 * time.Second

// AssistService 执行助手周期：读取房间上下文，调用补全服务，
// 把结果同时写入建议流和消息流。周期失败时不产生任何写入，
// 也不重试，下一次触发会带着更新后的上下文重新执行。
type AssistService struct {
	roomRepo       repository.RoomRepository
	messageRepo    repository.MessageRepository
	suggestionRepo repository.SuggestionRepository
	stateRepo      repository.StateRepository
	chat           *ChatService
	generator      completion.Generator
	timeout        time.Duration
}

// NewAssistService 创建 AssistService 实例。timeout 为 0 时使用默认值。
func NewAssistService(
	roomRepo repository.RoomRepository,
	messageRepo repository.MessageRepository,
	suggestionRepo repository.SuggestionRepository,
	stateRepo repository.StateRepository,
	chat *ChatService,
	generator completion.Generator,
	timeout time.Duration,
) *AssistService {
	if roomRepo == nil || messageRepo == nil || suggestionRepo == nil || stateRepo == nil || chat == nil || generator == nil {
		panic("all dependencies must be non-nil for AssistService")
	}
	if timeout <= 0 {
		timeout = defaultAssistTimeout
	}
	return &AssistService{
		roomRepo:       roomRepo,
		messageRepo:    messageRepo,
		suggestionRepo: suggestionRepo,
		stateRepo:      stateRepo,
		chat:           chat,
		generator:      generator,
		timeout:        timeout,
	}
}

// RunCycle 执行一次完整的助手周期。
// 任何一步失败都中止整个周期并返回错误，调用方（worker）只记录不重试。
func (s *AssistService) RunCycle(ctx context.Context, roomID uint) error {
	logCtx := logrus.WithField("room_id", roomID)

	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("Assist cycle skipped, room no longer exists")
			return nil
		}
		logCtx.WithError(err).Error("Assist cycle aborted, failed to load room")
		return err
	}

	recent, err := s.messageRepo.ListRecent(ctx, roomID, assistContextWindow)
	if err != nil {
		logCtx.WithError(err).Error("Assist cycle aborted, failed to load recent messages")
		return err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.generator.GenerateText(genCtx, buildModeratorPrompt(room, recent),
		"Generate a helpful suggestion for the team based on the recent discussion.")
	if err != nil {
		logCtx.WithError(err).Error("Assist cycle aborted, completion service failed")
		return err
	}

	category := ClassifySuggestion(text)
	logCtx = logCtx.WithField("category", category)

	suggestion := &domain.Suggestion{
		RoomID:    roomID,
		Body:      text,
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.suggestionRepo.Append(ctx, suggestion); err != nil {
		logCtx.WithError(err).Error("Assist cycle aborted, failed to persist suggestion")
		return err
	}
	s.publishSuggestionEvent(ctx, suggestion, logCtx)

	// 同一段文本也作为助手消息进入消息流，走常规发布路径拿到序号
	if _, err := s.chat.PostMessage(ctx, roomID, nil, text, true); err != nil {
		logCtx.WithError(err).Error("Suggestion persisted but assistant message failed")
		return err
	}

	logCtx.Info("Assist cycle completed")
	return nil
}

// ClassifySuggestion 按关键词把建议文本归入一个分类。
// 匹配不到任何关键词时归为 idea。
func ClassifySuggestion(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "summary") || strings.Contains(lower, "key points"):
		return domain.SuggestionSummary
	case strings.Contains(lower, "participate") || strings.Contains(lower, "share"):
		return domain.SuggestionEngagement
	default:
		return domain.SuggestionIdea
	}
}

// buildModeratorPrompt 根据房间信息和最近消息构造系统提示。
func buildModeratorPrompt(room *domain.Room, recent []domain.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an AI moderator for a collaborative brainstorming room called %q. ", room.Name)
	fmt.Fprintf(&b, "The room's theme is: %s. ", room.Theme)
	b.WriteString("Your role is to help the team brainstorm effectively. ")
	b.WriteString("Offer one concise suggestion: a new idea to explore, a summary of the discussion so far, or a prompt to encourage quieter members to participate. ")
	b.WriteString("Keep it to two or three sentences.")

	if len(recent) > 0 {
		b.WriteString("\n\nRecent messages:\n")
		for _, m := range recent {
			author := "Participant"
			if m.IsAssistant {
				author = "Assistant"
			}
			fmt.Fprintf(&b, "- %s: %s\n", author, m.Body)
		}
	}
	return b.String()
}

// publishSuggestionEvent 向房间频道广播建议事件。失败只记录。
func (s *AssistService) publishSuggestionEvent(ctx context.Context, suggestion *domain.Suggestion, logCtx *logrus.Entry) {
	payload, err := json.Marshal(domain.RoomEvent{
		Type:       domain.EventTypeSuggestion,
		Suggestion: suggestion,
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal suggestion event")
		return
	}
	if err := s.stateRepo.PublishRoomEvent(ctx, suggestion.RoomID, payload); err != nil {
		logCtx.WithError(err).Warn("Failed to publish suggestion event")
	}
}

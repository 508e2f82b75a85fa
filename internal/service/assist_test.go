package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-ideation/internal/domain"
	"collaborative-ideation/internal/repository"
	"collaborative-ideation/internal/repository/mocks"
	"collaborative-ideation/internal/service"
)

// mockGenerator 是 completion.Generator 的 testify Mock。
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	args := m.Called(ctx, systemPrompt, userPrompt)
	return args.String(0), args.Error(1)
}

type assistFixture struct {
	svc            *service.AssistService
	roomRepo       *mocks.RoomRepository
	messageRepo    *mocks.MessageRepository
	suggestionRepo *mocks.SuggestionRepository
	stateRepo      *mocks.StateRepository
	generator      *mockGenerator
	enqueuer       *mockEnqueuer
}

func newAssistFixture(t *testing.T) *assistFixture {
	t.Helper()
	f := &assistFixture{
		roomRepo:       new(mocks.RoomRepository),
		messageRepo:    new(mocks.MessageRepository),
		suggestionRepo: new(mocks.SuggestionRepository),
		stateRepo:      new(mocks.StateRepository),
		generator:      new(mockGenerator),
		enqueuer:       new(mockEnqueuer),
	}
	chat := service.NewChatService(f.messageRepo, f.suggestionRepo, f.stateRepo, f.enqueuer)
	f.svc = service.NewAssistService(
		f.roomRepo, f.messageRepo, f.suggestionRepo, f.stateRepo, chat, f.generator, 0)
	return f
}

func TestAssistService_RunCycle_Success(t *testing.T) {
	// Arrange
	f := newAssistFixture(t)
	ctx := context.Background()

	room := &domain.Room{ID: 1, Name: "Sprint Ideas", Theme: "Q3 planning"}
	recent := []domain.Message{
		{RoomID: 1, Seq: 1, Body: "first"},
		{RoomID: 1, Seq: 2, Body: "second"},
		{RoomID: 1, Seq: 3, Body: "third"},
	}
	generated := "Why not share your thoughts on the roadmap?"

	f.roomRepo.On("FindByID", ctx, uint(1)).Return(room, nil).Once()
	// 上下文窗口：最近 5 条（房间上下文），外加助手消息自己的回填查询不发生
	f.messageRepo.On("ListRecent", ctx, uint(1), 5).Return(recent, nil).Once()
	f.generator.On("GenerateText", mock.Anything, mock.MatchedBy(func(sys string) bool {
		assert.Contains(t, sys, "Sprint Ideas")
		assert.Contains(t, sys, "Q3 planning")
		assert.Contains(t, sys, "first")
		return true
	}), mock.Anything).Return(generated, nil).Once()

	f.suggestionRepo.On("Append", ctx, mock.MatchedBy(func(s *domain.Suggestion) bool {
		assert.Equal(t, uint(1), s.RoomID)
		assert.Equal(t, generated, s.Body)
		assert.Equal(t, domain.SuggestionEngagement, s.Category) // "share" 命中参与类
		return true
	})).Return(nil).Once()

	// 建议事件 + 助手消息事件各发布一次
	suggestionPublished := false
	messagePublished := false
	f.stateRepo.On("PublishRoomEvent", ctx, uint(1), mock.MatchedBy(func(payload []byte) bool {
		var event domain.RoomEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		switch event.Type {
		case domain.EventTypeSuggestion:
			suggestionPublished = true
		case domain.EventTypeMessage:
			messagePublished = true
			require.NotNil(t, event.Message)
			assert.True(t, event.Message.IsAssistant)
		}
		return true
	})).Return(nil).Twice()

	// 助手消息走常规发布路径
	f.stateRepo.On("NextMessageSeq", ctx, uint(1)).Return(uint64(4), nil).Once()
	f.messageRepo.On("Append", ctx, mock.MatchedBy(func(msg *domain.Message) bool {
		assert.Nil(t, msg.UserID)
		assert.True(t, msg.IsAssistant)
		assert.Equal(t, generated, msg.Body)
		assert.Equal(t, uint64(4), msg.Seq)
		return true
	})).Return(nil).Once()

	// Act
	err := f.svc.RunCycle(ctx, 1)

	// Assert
	require.NoError(t, err)
	assert.True(t, suggestionPublished, "应发布建议事件")
	assert.True(t, messagePublished, "应发布助手消息事件")
	f.stateRepo.AssertNotCalled(t, "IncrHumanMessageCount", mock.Anything, mock.Anything)

	f.roomRepo.AssertExpectations(t)
	f.suggestionRepo.AssertExpectations(t)
	f.stateRepo.AssertExpectations(t)
}

func TestAssistService_RunCycle_CompletionFails_NoWrites(t *testing.T) {
	// 补全失败时整个周期放弃，不产生任何写入
	f := newAssistFixture(t)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(1)).
		Return(&domain.Room{ID: 1, Name: "Room", Theme: "Theme"}, nil).Once()
	f.messageRepo.On("ListRecent", ctx, uint(1), 5).Return([]domain.Message{}, nil).Once()
	f.generator.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("gateway timeout")).Once()

	err := f.svc.RunCycle(ctx, 1)

	require.Error(t, err)
	f.suggestionRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	f.messageRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	f.stateRepo.AssertNotCalled(t, "PublishRoomEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestAssistService_RunCycle_RoomGone_Skipped(t *testing.T) {
	// 房间已不存在时周期静默跳过，不算失败
	f := newAssistFixture(t)
	ctx := context.Background()

	f.roomRepo.On("FindByID", ctx, uint(42)).Return(nil, repository.ErrRoomNotFound).Once()

	err := f.svc.RunCycle(ctx, 42)

	require.NoError(t, err)
	f.generator.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything)
}

func TestClassifySuggestion(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		expected string
	}{
		{"summary keyword", "Here is a summary of the discussion so far.", domain.SuggestionSummary},
		{"key points keyword", "The key points raised were scalability and cost.", domain.SuggestionSummary},
		{"participate keyword", "Quieter members, feel free to participate!", domain.SuggestionEngagement},
		{"share keyword", "Would anyone like to share a different angle?", domain.SuggestionEngagement},
		{"default idea", "What about a referral program for early users?", domain.SuggestionIdea},
		{"case insensitive", "SUMMARY: the team agreed on option B.", domain.SuggestionSummary},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, service.ClassifySuggestion(tc.text))
		})
	}
}

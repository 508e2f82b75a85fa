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
	"collaborative-ideation/internal/repository/mocks"
	"collaborative-ideation/internal/service"
)

// mockEnqueuer 是 service.AssistEnqueuer 的 testify Mock。
type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueAssistCycle(ctx context.Context, roomID uint) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func newChatService(t *testing.T) (*service.ChatService, *mocks.MessageRepository, *mocks.SuggestionRepository, *mocks.StateRepository, *mockEnqueuer) {
	t.Helper()
	mockMessageRepo := new(mocks.MessageRepository)
	mockSuggestionRepo := new(mocks.SuggestionRepository)
	mockStateRepo := new(mocks.StateRepository)
	enqueuer := new(mockEnqueuer)
	svc := service.NewChatService(mockMessageRepo, mockSuggestionRepo, mockStateRepo, enqueuer)
	return svc, mockMessageRepo, mockSuggestionRepo, mockStateRepo, enqueuer
}

func TestChatService_PostMessage_Success(t *testing.T) {
	// Arrange
	svc, mockMessageRepo, _, mockStateRepo, enqueuer := newChatService(t)
	ctx := context.Background()
	userID := uint(4)

	mockStateRepo.On("NextMessageSeq", ctx, uint(1)).Return(uint64(7), nil).Once()
	mockMessageRepo.On("Append", ctx, mock.MatchedBy(func(msg *domain.Message) bool {
		assert.Equal(t, uint(1), msg.RoomID)
		require.NotNil(t, msg.UserID)
		assert.Equal(t, userID, *msg.UserID)
		assert.Equal(t, "hello room", msg.Body)
		assert.Equal(t, uint64(7), msg.Seq)
		assert.False(t, msg.IsAssistant)
		return true
	})).Return(nil).Once()
	mockStateRepo.On("PublishRoomEvent", ctx, uint(1), mock.MatchedBy(func(payload []byte) bool {
		var event domain.RoomEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, domain.EventTypeMessage, event.Type)
		assert.Equal(t, uint64(7), event.Seq)
		require.NotNil(t, event.Message)
		assert.Equal(t, "hello room", event.Message.Body)
		return true
	})).Return(nil).Once()
	// 计数未到触发间隔，不投递任务
	mockStateRepo.On("IncrHumanMessageCount", ctx, uint(1)).Return(int64(2), nil).Once()

	// Act
	msg, err := svc.PostMessage(ctx, 1, &userID, "hello room", false)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, uint64(7), msg.Seq)
	enqueuer.AssertNotCalled(t, "EnqueueAssistCycle", mock.Anything, mock.Anything)

	mockStateRepo.AssertExpectations(t)
	mockMessageRepo.AssertExpectations(t)
}

func TestChatService_PostMessage_TriggersAssistOnThirdHumanMessage(t *testing.T) {
	svc, mockMessageRepo, _, mockStateRepo, enqueuer := newChatService(t)
	ctx := context.Background()
	userID := uint(4)

	mockStateRepo.On("NextMessageSeq", ctx, uint(1)).Return(uint64(9), nil).Once()
	mockMessageRepo.On("Append", ctx, mock.AnythingOfType("*domain.Message")).Return(nil).Once()
	mockStateRepo.On("PublishRoomEvent", ctx, uint(1), mock.Anything).Return(nil).Once()
	mockStateRepo.On("IncrHumanMessageCount", ctx, uint(1)).Return(int64(3), nil).Once()
	enqueuer.On("EnqueueAssistCycle", ctx, uint(1)).Return(nil).Once()

	_, err := svc.PostMessage(ctx, 1, &userID, "third message", false)

	require.NoError(t, err)
	enqueuer.AssertExpectations(t)
}

func TestChatService_PostMessage_AssistantDoesNotAdvanceCadence(t *testing.T) {
	// 助手消息不递增人类计数，自己的输出不会引发下一次触发
	svc, mockMessageRepo, _, mockStateRepo, enqueuer := newChatService(t)
	ctx := context.Background()

	mockStateRepo.On("NextMessageSeq", ctx, uint(1)).Return(uint64(10), nil).Once()
	mockMessageRepo.On("Append", ctx, mock.MatchedBy(func(msg *domain.Message) bool {
		assert.Nil(t, msg.UserID)
		assert.True(t, msg.IsAssistant)
		return true
	})).Return(nil).Once()
	mockStateRepo.On("PublishRoomEvent", ctx, uint(1), mock.Anything).Return(nil).Once()

	_, err := svc.PostMessage(ctx, 1, nil, "assistant says hi", true)

	require.NoError(t, err)
	mockStateRepo.AssertNotCalled(t, "IncrHumanMessageCount", mock.Anything, mock.Anything)
	enqueuer.AssertNotCalled(t, "EnqueueAssistCycle", mock.Anything, mock.Anything)
}

func TestChatService_PostMessage_AppendFails_NoPublish(t *testing.T) {
	// 落库失败时消息不广播，序号作废
	svc, mockMessageRepo, _, mockStateRepo, _ := newChatService(t)
	ctx := context.Background()
	userID := uint(4)

	mockStateRepo.On("NextMessageSeq", ctx, uint(1)).Return(uint64(8), nil).Once()
	mockMessageRepo.On("Append", ctx, mock.AnythingOfType("*domain.Message")).
		Return(errors.New("disk full")).Once()

	_, err := svc.PostMessage(ctx, 1, &userID, "doomed", false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInternalServer))
	mockStateRepo.AssertNotCalled(t, "PublishRoomEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatService_PostMessage_PublishFails_StillSucceeds(t *testing.T) {
	// 广播失败不影响发布结果，消息已经持久化
	svc, mockMessageRepo, _, mockStateRepo, _ := newChatService(t)
	ctx := context.Background()
	userID := uint(4)

	mockStateRepo.On("NextMessageSeq", ctx, uint(1)).Return(uint64(5), nil).Once()
	mockMessageRepo.On("Append", ctx, mock.AnythingOfType("*domain.Message")).Return(nil).Once()
	mockStateRepo.On("PublishRoomEvent", ctx, uint(1), mock.Anything).
		Return(errors.New("redis down")).Once()
	mockStateRepo.On("IncrHumanMessageCount", ctx, uint(1)).Return(int64(1), nil).Once()

	msg, err := svc.PostMessage(ctx, 1, &userID, "still works", false)

	require.NoError(t, err)
	assert.Equal(t, uint64(5), msg.Seq)
}

func TestChatService_PostMessage_EmptyBody(t *testing.T) {
	svc, _, _, mockStateRepo, _ := newChatService(t)
	userID := uint(1)

	_, err := svc.PostMessage(context.Background(), 1, &userID, "   ", false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrValidation))
	mockStateRepo.AssertNotCalled(t, "NextMessageSeq", mock.Anything, mock.Anything)
}

func TestChatService_PostMessage_EnqueueFails_MessageStillPosted(t *testing.T) {
	// 任务投递是 fire-and-forget，失败不影响已发布的消息
	svc, mockMessageRepo, _, mockStateRepo, enqueuer := newChatService(t)
	ctx := context.Background()
	userID := uint(4)

	mockStateRepo.On("NextMessageSeq", ctx, uint(1)).Return(uint64(12), nil).Once()
	mockMessageRepo.On("Append", ctx, mock.AnythingOfType("*domain.Message")).Return(nil).Once()
	mockStateRepo.On("PublishRoomEvent", ctx, uint(1), mock.Anything).Return(nil).Once()
	mockStateRepo.On("IncrHumanMessageCount", ctx, uint(1)).Return(int64(6), nil).Once()
	enqueuer.On("EnqueueAssistCycle", ctx, uint(1)).Return(errors.New("queue unavailable")).Once()

	msg, err := svc.PostMessage(ctx, 1, &userID, "sixth message", false)

	require.NoError(t, err)
	assert.NotNil(t, msg)
	enqueuer.AssertExpectations(t)
}

func TestChatService_Backfill(t *testing.T) {
	svc, mockMessageRepo, _, _, _ := newChatService(t)
	ctx := context.Background()

	expected := []domain.Message{{RoomID: 1, Seq: 1}, {RoomID: 1, Seq: 2}}
	mockMessageRepo.On("ListRecent", ctx, uint(1), service.BackfillLimit).Return(expected, nil).Once()

	msgs, err := svc.Backfill(ctx, 1, 0) // limit <= 0 使用默认值

	require.NoError(t, err)
	assert.Equal(t, expected, msgs)
	mockMessageRepo.AssertExpectations(t)
}

func TestChatService_FetchRange(t *testing.T) {
	svc, mockMessageRepo, _, _, _ := newChatService(t)
	ctx := context.Background()

	expected := []domain.Message{{RoomID: 1, Seq: 4}, {RoomID: 1, Seq: 5}}
	mockMessageRepo.On("ListRange", ctx, uint(1), uint64(4), uint64(5)).Return(expected, nil).Once()

	msgs, err := svc.FetchRange(ctx, 1, 4, 5)

	require.NoError(t, err)
	assert.Equal(t, expected, msgs)
}

func TestChatService_ListSuggestions_UsesDisplayLimit(t *testing.T) {
	svc, _, mockSuggestionRepo, _, _ := newChatService(t)
	ctx := context.Background()

	expected := []domain.Suggestion{{RoomID: 1, Category: domain.SuggestionIdea}}
	mockSuggestionRepo.On("ListRecent", ctx, uint(1), domain.SuggestionDisplayLimit).
		Return(expected, nil).Once()

	suggestions, err := svc.ListSuggestions(ctx, 1)

	require.NoError(t, err)
	assert.Equal(t, expected, suggestions)
	mockSuggestionRepo.AssertExpectations(t)
}

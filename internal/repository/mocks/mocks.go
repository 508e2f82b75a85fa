// Package mocks 提供 repository 接口的手写 testify Mock 实现，供各层测试使用。
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collaborative-ideation/internal/domain"
	"collaborative-ideation/internal/repository"
)

// UserRepository 是 repository.UserRepository 的 Mock 实现。
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	var user *domain.User
	if args.Get(0) != nil {
		user = args.Get(0).(*domain.User)
	}
	return user, args.Error(1)
}

func (m *UserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	args := m.Called(ctx, id)
	var user *domain.User
	if args.Get(0) != nil {
		user = args.Get(0).(*domain.User)
	}
	return user, args.Error(1)
}

func (m *UserRepository) Save(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// RoomRepository 是 repository.RoomRepository 的 Mock 实现。
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) Save(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	args := m.Called(ctx, id)
	var room *domain.Room
	if args.Get(0) != nil {
		room = args.Get(0).(*domain.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepository) ListWithOccupancy(ctx context.Context) ([]repository.RoomWithOccupancy, error) {
	args := m.Called(ctx)
	var rooms []repository.RoomWithOccupancy
	if args.Get(0) != nil {
		rooms = args.Get(0).([]repository.RoomWithOccupancy)
	}
	return rooms, args.Error(1)
}

// ParticipantRepository 是 repository.ParticipantRepository 的 Mock 实现。
type ParticipantRepository struct {
	mock.Mock
}

func (m *ParticipantRepository) Admit(ctx context.Context, roomID, userID uint) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *ParticipantRepository) Exists(ctx context.Context, roomID, userID uint) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ParticipantRepository) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ParticipantRepository) Remove(ctx context.Context, roomID, userID uint) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

// MessageRepository 是 repository.MessageRepository 的 Mock 实现。
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageRepository) ListRecent(ctx context.Context, roomID uint, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []domain.Message
	if args.Get(0) != nil {
		msgs = args.Get(0).([]domain.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepository) ListRange(ctx context.Context, roomID uint, fromSeq, toSeq uint64) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, fromSeq, toSeq)
	var msgs []domain.Message
	if args.Get(0) != nil {
		msgs = args.Get(0).([]domain.Message)
	}
	return msgs, args.Error(1)
}

// SuggestionRepository 是 repository.SuggestionRepository 的 Mock 实现。
type SuggestionRepository struct {
	mock.Mock
}

func (m *SuggestionRepository) Append(ctx context.Context, suggestion *domain.Suggestion) error {
	args := m.Called(ctx, suggestion)
	return args.Error(0)
}

func (m *SuggestionRepository) ListRecent(ctx context.Context, roomID uint, limit int) ([]domain.Suggestion, error) {
	args := m.Called(ctx, roomID, limit)
	var suggestions []domain.Suggestion
	if args.Get(0) != nil {
		suggestions = args.Get(0).([]domain.Suggestion)
	}
	return suggestions, args.Error(1)
}

func (m *SuggestionRepository) TrimOld(ctx context.Context, keep int) error {
	args := m.Called(ctx, keep)
	return args.Error(0)
}

// StateRepository 是 repository.StateRepository 的 Mock 实现。
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) NextMessageSeq(ctx context.Context, roomID uint) (uint64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *StateRepository) IncrHumanMessageCount(ctx context.Context, roomID uint) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StateRepository) PublishRoomEvent(ctx context.Context, roomID uint, payload []byte) error {
	args := m.Called(ctx, roomID, payload)
	return args.Error(0)
}

func (m *StateRepository) PublishLobbyEvent(ctx context.Context, payload []byte) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, duration)
	return args.Bool(0), args.Error(1)
}

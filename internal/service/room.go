package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/domain"
	"collaborative-ideation/internal/repository"
)

// RoomService 负责房间管理相关的业务逻辑。
type RoomService struct {
	roomRepo        repository.RoomRepository
	participantRepo repository.ParticipantRepository
	stateRepo       repository.StateRepository
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(
	roomRepo repository.RoomRepository,
	participantRepo repository.ParticipantRepository,
	stateRepo repository.StateRepository,
) *RoomService {
	if roomRepo == nil || participantRepo == nil || stateRepo == nil {
		panic("all repositories must be non-nil for RoomService")
	}
	return &RoomService{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
		stateRepo:       stateRepo,
	}
}

// CreateRoom 创建一个新房间并把创建者作为首个成员准入。
// 第二个返回值表示创建者自动加入是否成功：
// 自动加入失败时房间保留（报告而非回滚），创建者可以走普通加入流程补救。
func (s *RoomService) CreateRoom(ctx context.Context, creatorID uint, name, theme, description string) (*domain.Room, bool, error) {
	logCtx := logrus.WithField("creator_id", creatorID)

	name = strings.TrimSpace(name)
	theme = strings.TrimSpace(theme)
	if name == "" || theme == "" {
		return nil, false, ErrValidation
	}

	room := &domain.Room{
		Name:        name,
		Theme:       theme,
		Description: strings.TrimSpace(description),
		CreatorID:   creatorID,
		Capacity:    domain.DefaultRoomCapacity,
	}
	if err := s.roomRepo.Save(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to save new room")
		return nil, false, ErrInternalServer
	}
	logCtx = logCtx.WithField("room_id", room.ID)

	// 创建者自动加入，作为同一逻辑操作的一部分
	joined := true
	if err := s.participantRepo.Admit(ctx, room.ID, creatorID); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 理论上新房间不可能已有成员，幂等处理即可
			logCtx.Warn("Creator was already a member of the freshly created room")
		} else {
			joined = false
			logCtx.WithError(err).Error("Room created but creator self-join failed, leaving room unjoined")
		}
	}

	s.notifyLobby(ctx, logCtx)
	logCtx.WithField("creator_joined", joined).Info("Room created")
	return room, joined, nil
}

// ListRooms 返回全部房间及当前成员数，按创建时间倒序。
func (s *RoomService) ListRooms(ctx context.Context) ([]repository.RoomWithOccupancy, error) {
	rooms, err := s.roomRepo.ListWithOccupancy(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list rooms with occupancy")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

// FindRoomByID 查找单个房间，供 Handler 使用。
func (s *RoomService) FindRoomByID(ctx context.Context, roomID uint) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("FindRoomByID: repository error")
		return nil, ErrInternalServer
	}
	return room, nil
}

// notifyLobby 向大厅频道推送房间列表失效事件。
// 推送失败只记录：列表订阅端下一次事件仍会触发重新拉取。
func (s *RoomService) notifyLobby(ctx context.Context, logCtx *logrus.Entry) {
	payload, err := json.Marshal(domain.RoomEvent{Type: domain.EventTypeRoomsChanged})
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal lobby event")
		return
	}
	if err := s.stateRepo.PublishLobbyEvent(ctx, payload); err != nil {
		logCtx.WithError(err).Warn("Failed to publish lobby invalidation event")
	}
}

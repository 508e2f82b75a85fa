package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/domain"
	"collaborative-ideation/internal/repository"
)

// JoinResult 描述一次加入请求的结局。
type JoinResult string

const (
	JoinAdmitted      JoinResult = "admitted"
	JoinAlreadyMember JoinResult = "already_member" // 幂等加入，调用方按成功处理
	JoinRoomFull      JoinResult = "room_full"
	JoinRoomNotFound  JoinResult = "not_found"
)

// MembershipService 负责房间成员准入。容量不变量（成员数永不超过容量）
// 由仓库层的原子 Admit 保证，这里只做结果到业务语义的映射。
type MembershipService struct {
	participantRepo repository.ParticipantRepository
	stateRepo       repository.StateRepository
}

// NewMembershipService 创建 MembershipService 实例。
func NewMembershipService(
	participantRepo repository.ParticipantRepository,
	stateRepo repository.StateRepository,
) *MembershipService {
	if participantRepo == nil || stateRepo == nil {
		panic("all repositories must be non-nil for MembershipService")
	}
	return &MembershipService{
		participantRepo: participantRepo,
		stateRepo:       stateRepo,
	}
}

// JoinRoom 处理用户加入房间。
// 重复加入不是错误：返回 JoinAlreadyMember 且 error 为 nil，占用数不变。
func (s *MembershipService) JoinRoom(ctx context.Context, roomID, userID uint) (JoinResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	err := s.participantRepo.Admit(ctx, roomID, userID)
	switch {
	case err == nil:
		s.notifyLobby(ctx, logCtx)
		logCtx.Info("User admitted to room")
		return JoinAdmitted, nil
	case errors.Is(err, repository.ErrDuplicateEntry):
		logCtx.Debug("Join request deduplicated, user already a member")
		return JoinAlreadyMember, nil
	case errors.Is(err, repository.ErrRoomFull):
		logCtx.Info("Join rejected, room at capacity")
		return JoinRoomFull, ErrRoomFull
	case errors.Is(err, repository.ErrRoomNotFound):
		logCtx.Warn("Join rejected, room not found")
		return JoinRoomNotFound, ErrRoomNotFound
	default:
		logCtx.WithError(err).Error("Join failed with repository error")
		return "", ErrInternalServer
	}
}

// IsMember 检查用户是否为房间成员。订阅房间消息流前必须通过这个检查。
func (s *MembershipService) IsMember(ctx context.Context, roomID, userID uint) (bool, error) {
	ok, err := s.participantRepo.Exists(ctx, roomID, userID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).
			Error("Membership check failed")
		return false, ErrInternalServer
	}
	return ok, nil
}

// LeaveRoom 显式离开房间。当前 UI 范围内没有对应入口，保留给管理操作。
func (s *MembershipService) LeaveRoom(ctx context.Context, roomID, userID uint) error {
	err := s.participantRepo.Remove(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotMember
		}
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).
			Error("Leave failed with repository error")
		return ErrInternalServer
	}
	s.notifyLobby(ctx, logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}))
	return nil
}

func (s *MembershipService) notifyLobby(ctx context.Context, logCtx *logrus.Entry) {
	payload, err := json.Marshal(domain.RoomEvent{Type: domain.EventTypeRoomsChanged})
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal lobby event")
		return
	}
	if err := s.stateRepo.PublishLobbyEvent(ctx, payload); err != nil {
		logCtx.WithError(err).Warn("Failed to publish lobby invalidation event")
	}
}

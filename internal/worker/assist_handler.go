package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/service"
	"collaborative-ideation/internal/tasks"
)

// AssistCycleHandler 处理助手周期任务。
type AssistCycleHandler struct {
	assistService *service.AssistService
}

// NewAssistCycleHandler 创建 Handler 实例。
func NewAssistCycleHandler(assistService *service.AssistService) *AssistCycleHandler {
	if assistService == nil {
		panic("AssistService cannot be nil for AssistCycleHandler")
	}
	return &AssistCycleHandler{assistService: assistService}
}

// ProcessTask 实现 asynq.Handler 接口。
// 任务以 MaxRetry 0 投递，返回错误只用于记录，不会触发重试。
func (h *AssistCycleHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.AssistCyclePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.WithError(err).WithField("task_type", t.Type()).Error("Failed to unmarshal assist cycle payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"task_type": t.Type(),
		"room_id":   payload.RoomID,
	})
	logCtx.Info("Processing assist cycle task...")

	if err := h.assistService.RunCycle(ctx, payload.RoomID); err != nil {
		// 失败的周期被放弃，房间的下一次触发重新开始
		logCtx.WithError(err).Warn("Assist cycle task abandoned")
		return fmt.Errorf("assist cycle for room %d: %v: %w", payload.RoomID, err, asynq.SkipRetry)
	}

	logCtx.Info("Assist cycle task processed successfully")
	return nil
}

package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/repository"
)

// suggestionRetain 是裁剪后每个房间保留的建议条数。
// 展示上限是 5，多保留一些以便排查，更早的记录定期删除。
const suggestionRetain = 100

// SuggestionTrimHandler 处理周期性的建议裁剪任务。
type SuggestionTrimHandler struct {
	suggestionRepo repository.SuggestionRepository
}

// NewSuggestionTrimHandler 创建 Handler 实例。
func NewSuggestionTrimHandler(suggestionRepo repository.SuggestionRepository) *SuggestionTrimHandler {
	if suggestionRepo == nil {
		panic("SuggestionRepository cannot be nil for SuggestionTrimHandler")
	}
	return &SuggestionTrimHandler{suggestionRepo: suggestionRepo}
}

// ProcessTask 实现 asynq.Handler 接口。
func (h *SuggestionTrimHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())
	logCtx.Info("Processing suggestion trim task...")

	if err := h.suggestionRepo.TrimOld(ctx, suggestionRetain); err != nil {
		logCtx.WithError(err).Error("Suggestion trim failed")
		return fmt.Errorf("suggestion trim: %v: %w", err, asynq.SkipRetry)
	}

	logCtx.Info("Suggestion trim task processed successfully")
	return nil
}

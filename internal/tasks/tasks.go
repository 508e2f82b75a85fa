// Package tasks 定义后台任务类型和负载，以及投递用的 Enqueuer。
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// 任务类型常量。
const (
	TypeAssistCycle    = "assist:cycle"    // 单个房间的助手周期
	TypeSuggestionTrim = "suggestion:trim" // 周期性的建议裁剪
)

// AssistCyclePayload 定义助手周期任务的数据结构。
type AssistCyclePayload struct {
	RoomID uint `json:"room_id"`
}

// NewAssistCycleTask 创建一个助手周期任务。
// MaxRetry 为 0：周期失败即放弃，下一次触发会带着新的上下文重新执行。
func NewAssistCycleTask(roomID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(AssistCyclePayload{RoomID: roomID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal assist cycle payload: %w", err)
	}
	return asynq.NewTask(TypeAssistCycle, payload, asynq.MaxRetry(0), asynq.Queue("default")), nil
}

// NewSuggestionTrimTask 创建一个建议裁剪任务，由调度器周期性投递。
func NewSuggestionTrimTask() *asynq.Task {
	return asynq.NewTask(TypeSuggestionTrim, nil, asynq.MaxRetry(0), asynq.Queue("low"))
}

// Enqueuer 包装 asynq.Client，实现 Service 层的任务投递接口。
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer 创建 Enqueuer 实例。
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	if client == nil {
		panic("asynq client cannot be nil for Enqueuer")
	}
	return &Enqueuer{client: client}
}

// EnqueueAssistCycle 投递一个房间的助手周期任务。
func (e *Enqueuer) EnqueueAssistCycle(ctx context.Context, roomID uint) error {
	task, err := NewAssistCycleTask(roomID)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue assist cycle task: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"task_id": info.ID,
		"queue":   info.Queue,
		"room_id": roomID,
	}).Debug("Assist cycle task enqueued")
	return nil
}

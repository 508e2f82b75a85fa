// Package worker 封装 asynq 后台任务的处理器和服务端。
package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-ideation/internal/repository"
	"collaborative-ideation/internal/service"
	"collaborative-ideation/internal/tasks"
)

// trimSchedule 是建议裁剪任务的调度周期。
const trimSchedule = "@every 10m"

// WorkerServer 封装了 asynq Server 和 Scheduler 的启动和关闭逻辑。
type WorkerServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	log       *logrus.Entry

	assistService  *service.AssistService
	suggestionRepo repository.SuggestionRepository
}

// NewWorkerServer 创建 WorkerServer 实例。
func NewWorkerServer(
	redisOpt asynq.RedisClientOpt,
	assistService *service.AssistService,
	suggestionRepo repository.SuggestionRepository,
	logger *logrus.Logger,
) *WorkerServer {
	if assistService == nil {
		panic("AssistService cannot be nil for WorkerServer")
	}
	if suggestionRepo == nil {
		panic("SuggestionRepository cannot be nil for WorkerServer")
	}
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	scheduler := asynq.NewScheduler(redisOpt, nil)

	return &WorkerServer{
		server:         server,
		scheduler:      scheduler,
		log:            logEntry,
		assistService:  assistService,
		suggestionRepo: suggestionRepo,
	}
}

// Start 注册任务处理器和周期调度并运行 Worker Server。
// 应该在单独的 goroutine 中调用，server.Run 会阻塞直到 Shutdown。
func (ws *WorkerServer) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeAssistCycle, NewAssistCycleHandler(ws.assistService).ProcessTask)
	mux.HandleFunc(tasks.TypeSuggestionTrim, NewSuggestionTrimHandler(ws.suggestionRepo).ProcessTask)

	if _, err := ws.scheduler.Register(trimSchedule, tasks.NewSuggestionTrimTask()); err != nil {
		ws.log.WithError(err).Error("Failed to register suggestion trim schedule")
	} else if err := ws.scheduler.Start(); err != nil {
		ws.log.WithError(err).Error("Failed to start scheduler")
	}

	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(mux); err != nil {
		if !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		}
		ws.log.Info("Worker server stopped.")
	}
}

// Shutdown 优雅地关闭调度器和 Worker Server。
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.scheduler.Shutdown()
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}

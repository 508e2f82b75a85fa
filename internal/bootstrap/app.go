// Package bootstrap 负责配置加载、组件装配和应用生命周期。
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"collaborative-ideation/internal/completion"
	httpHandler "collaborative-ideation/internal/handler/http"
	wsHandler "collaborative-ideation/internal/handler/websocket"
	"collaborative-ideation/internal/hub"
	gormpersistence "collaborative-ideation/internal/infra/persistence/gorm"
	"collaborative-ideation/internal/infra/setup"
	redisstate "collaborative-ideation/internal/infra/state/redis"
	"collaborative-ideation/internal/middleware"
	"collaborative-ideation/internal/service"
	"collaborative-ideation/internal/tasks"
	"collaborative-ideation/internal/worker"
)

// Config 结构体用于存储从环境变量或文件加载的配置。
type Config struct {
	DBUser          string
	DBPassword      string
	DBHost          string
	DBPort          string
	DBName          string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	JWTSecret       string
	ServerPort      string
	LogLevel        string
	RateLimitMax    int
	RateLimitWindow time.Duration
	JWTExpiryHours  int
	AppEnv          string // development / production
	KeyPrefix       string // Redis key 前缀

	// 补全服务配置。BaseURL 为空时助手周期会在调用阶段失败并被放弃，
	// 系统的其余部分不受影响。
	CompletionBaseURL string
	CompletionAPIKey  string
	CompletionModel   string
	CompletionTimeout time.Duration
}

// LoadConfig 从环境变量加载配置。
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)，允许只使用环境变量
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            os.Getenv("DB_PORT"),
		DBName:            os.Getenv("DB_NAME"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		ServerPort:        os.Getenv("SERVER_PORT"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		AppEnv:            os.Getenv("APP_ENV"),
		KeyPrefix:         os.Getenv("REDIS_KEY_PREFIX"),
		CompletionBaseURL: os.Getenv("COMPLETION_API_URL"),
		CompletionAPIKey:  os.Getenv("COMPLETION_API_KEY"),
		CompletionModel:   os.Getenv("COMPLETION_MODEL"),
		RateLimitMax:      100,
		RateLimitWindow:   1 * time.Second,
		JWTExpiryHours:    24,
		CompletionTimeout: 8 * time.Second,
	}

	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB")) // 忽略错误，默认为 0
	if raw := os.Getenv("COMPLETION_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			cfg.CompletionTimeout = time.Duration(secs) * time.Second
		}
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ci:"
	}
	if cfg.CompletionModel == "" {
		cfg.CompletionModel = "gpt-4o-mini"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App 结构体包含应用的所有组件和配置。
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	HttpServer  *http.Server
}

// NewApp 创建并初始化应用的所有组件。
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Info("Configuration loaded successfully")

	// 基础设施
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database initialized and migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Asynq client initialized")

	// Repositories
	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	participantRepo := gormpersistence.NewGormParticipantRepository(db)
	messageRepo := gormpersistence.NewGormMessageRepository(db)
	suggestionRepo := gormpersistence.NewGormSuggestionRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)
	log.Info("Repositories initialized")

	// Services
	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	roomService := service.NewRoomService(roomRepo, participantRepo, stateRepo)
	membershipService := service.NewMembershipService(participantRepo, stateRepo)
	enqueuer := tasks.NewEnqueuer(asynqClient)
	chatService := service.NewChatService(messageRepo, suggestionRepo, stateRepo, enqueuer)

	if cfg.CompletionBaseURL == "" {
		log.Warn("COMPLETION_API_URL not set, assist cycles will abort at the completion call")
	}
	completionClient := completion.NewClient(cfg.CompletionBaseURL, cfg.CompletionAPIKey, cfg.CompletionModel)
	assistService := service.NewAssistService(
		roomRepo, messageRepo, suggestionRepo, stateRepo, chatService, completionClient, cfg.CompletionTimeout)
	log.Info("Services initialized")

	// Hub
	hubInstance := hub.NewHub(chatService, redisClient, cfg.KeyPrefix)
	log.Info("Hub initialized")

	// Handlers
	authHandler := httpHandler.NewAuthHandler(authService)
	roomHandler := httpHandler.NewRoomHandler(roomService, membershipService)
	messageHandler := httpHandler.NewMessageHandler(chatService, membershipService)
	socketHandler := wsHandler.NewWebSocketHandler(hubInstance, membershipService)
	log.Info("Handlers initialized")

	// Worker
	workerServer := worker.NewWorkerServer(redisClientOpt, assistService, suggestionRepo, log)
	log.Info("Worker server initialized")

	// Router
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(stateRepo, cfg.RateLimitMax, cfg.RateLimitWindow))

	api := router.Group("/api")
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}
	roomRoutes := api.Group("/rooms")
	roomRoutes.Use(middleware.Auth(cfg.JWTSecret))
	{
		roomRoutes.POST("", roomHandler.CreateRoom)
		roomRoutes.GET("", roomHandler.ListRooms)
		roomRoutes.POST("/:roomId/join", roomHandler.JoinRoom)
		roomRoutes.POST("/:roomId/messages", messageHandler.PostMessage)
		roomRoutes.GET("/:roomId/messages", messageHandler.ListMessages)
		roomRoutes.GET("/:roomId/suggestions", messageHandler.ListSuggestions)
	}
	wsRoutes := router.Group("/ws")
	wsRoutes.Use(middleware.Auth(cfg.JWTSecret))
	{
		wsRoutes.GET("/rooms/:roomId", socketHandler.HandleRoomConnection)
		wsRoutes.GET("/lobby", socketHandler.HandleLobbyConnection)
	}
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		AsynqClient: asynqClient,
		AsynqServer: workerServer,
		Hub:         hubInstance,
		HttpServer:  httpServer,
	}, nil
}

// Start 启动应用的所有后台 goroutine 和 HTTP 服务器。
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	go a.Hub.Run()
	go a.AsynqServer.Start()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// Shutdown 优雅地关闭应用。
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.Hub != nil {
		a.Hub.Stop()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// corsMiddleware 返回一个简单的 CORS 中间件。
func corsMiddleware() gin.HandlerFunc {
	allowedOrigin := os.Getenv("CORS_ALLOWED_ORIGIN")
	if allowedOrigin == "" {
		allowedOrigin = "http://localhost:3000"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志。
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		switch {
		case errorMessage != "":
			entry.Error(errorMessage)
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}

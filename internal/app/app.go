package app

import (
	"context"
	"edunexus_backend/internal/assistant"
	"edunexus_backend/internal/config"
	"edunexus_backend/internal/controller"
	"edunexus_backend/internal/repository"
	"edunexus_backend/internal/seed"
	"edunexus_backend/internal/service"
	"edunexus_backend/internal/session"
	"edunexus_backend/internal/util"
	"edunexus_backend/pkg/configwatcher"
	"edunexus_backend/pkg/database"
	"edunexus_backend/pkg/logger"
	"edunexus_backend/pkg/monitoring"
	"edunexus_backend/pkg/security"
	"edunexus_backend/pkg/tracing"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services        *services
	limiter         *security.RateLimiter
	tracer          *sdktrace.TracerProvider
	stopWatch       context.CancelFunc
	stopSweep       chan struct{}
	closeOnce       sync.Once
	configMu        sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	users   repository.UserRepository
	content repository.ContentRepository
}

type services struct {
	sessions     *session.Registry
	auth         *service.AuthService
	access       *service.AccessChecker
	storage      *service.StorageService
	classroom    *service.ClassroomService
	note         *service.NoteService
	question     *service.QuestionService
	announcement *service.AnnouncementService
	navigation   *service.NavigationService
	chapterView  *service.ChapterViewService
	export       *service.ExportService
	dashboard    *service.DashboardService
	notebooks    *assistant.Notebooks
	notebookHub  *service.NotebookHub
}

type controllers struct {
	auth       *controller.AuthController
	classroom  *controller.ClassroomController
	note       *controller.NoteController
	question   *controller.QuestionController
	navigation *controller.NavigationController
	notebook   *controller.NotebookController
	dashboard  *controller.DashboardController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(cfg *config.Config) (*repositories, error) {
	if cfg.Database.Driver != config.DriverMySQL {
		mem := repository.NewMemoryRepository()
		return &repositories{users: mem, content: mem}, nil
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		return nil, err
	}
	a.DB = db

	// release 模式默认不自动迁移，需要 --migrate
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
		logger.Log.Info("Database migrated")
	}

	repo := repository.NewGormRepository(db)
	return &repositories{users: repo, content: repo}, nil
}

func (a *App) initSessionPersistence(ctx context.Context, cfg *config.Config) (session.Persistence, error) {
	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.Redis = rdb
	}
	if cfg.Session.Backend == config.SessionBackendRedis {
		return session.NewRedisPersistence(a.Redis, cfg.JWT.ExpireTime), nil
	}
	return session.NewMemoryPersistence(), nil
}

func newAssistant(cfg *config.Config, content repository.ContentRepository) *assistant.Assistant {
	providers := []assistant.Provider{}
	if cfg.AI.Enabled() {
		timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
		providers = append(providers, assistant.NewOpenAIProvider(cfg.AI.APIKey,
			assistant.WithBaseURL(cfg.AI.BaseURL),
			assistant.WithHTTPClient(&http.Client{Timeout: timeout}),
		))
	}
	// 本地抽取式回答兜底，外部模型不可用时仍能回答
	providers = append(providers, assistant.NewExtractiveProvider())

	return assistant.New(content, assistant.NewRouter(providers...),
		assistant.WithModel(cfg.AI.Model),
		assistant.WithMaxSources(cfg.AI.MaxSources),
	)
}

func (a *App) initServices(repos *repositories, persistence session.Persistence, cfg *config.Config) *services {
	s := &services{}

	s.auth = service.NewAuthService(repos.users)
	s.sessions = session.NewRegistry(s.auth, persistence)
	s.sessions.Prefix = cfg.Session.Key

	s.access = service.NewAccessChecker(repos.content)
	s.storage = service.NewStorageService(cfg.Storage)
	s.classroom = service.NewClassroomService(repos.content, repos.users, s.access)
	s.note = service.NewNoteService(repos.content, s.access, s.storage)
	s.question = service.NewQuestionService(repos.content, s.access)
	s.announcement = service.NewAnnouncementService(repos.content, s.access)
	s.navigation = service.NewNavigationService(s.access)
	s.export = service.NewExportService(repos.content, s.classroom)
	s.dashboard = service.NewDashboardService(s.classroom, s.note, s.question)

	s.notebooks = assistant.NewNotebooks(newAssistant(cfg, repos.content))
	s.notebookHub = service.NewNotebookHub(s.notebooks, s.access)
	s.chapterView = service.NewChapterViewService(repos.content, s.access, s.notebooks)

	return s
}

func (a *App) initControllers(s *services, cfg *config.Config) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.sessions, s.navigation, s.notebookHub, cfg.JWT.Secret, cfg.JWT.ExpireTime),
		classroom:  controller.NewClassroomController(s.classroom, s.announcement, s.export),
		note:       controller.NewNoteController(s.note),
		question:   controller.NewQuestionController(s.question),
		navigation: controller.NewNavigationController(s.navigation, s.chapterView),
		notebook:   controller.NewNotebookController(s.notebookHub),
		dashboard:  controller.NewDashboardController(s.dashboard),
		health:     controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(a.limiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// applyConfig 热加载只调整日志级别和限流参数，其余配置需要重启
func (a *App) applyConfig(cfg *config.Config) {
	logger.SetMode(cfg.Server.Mode)
	a.limiter.Update(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window())

	a.configMu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.configMu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

// New 组装应用，初始化失败时返回错误并释放已创建的连接
func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	gin.SetMode(cfg.Server.Mode)
	binding.Validator = util.GinValidator{}
	monitoring.Init()

	app := &App{
		Config:  cfg,
		limiter: security.NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window()),
	}

	repos, err := app.initRepositories(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if cfg.MigrateOnly {
		return app, nil
	}

	if err := seed.Apply(ctx, seed.Default(), repos.users, repos.content); err != nil {
		app.Close()
		return nil, err
	}

	persistence, err := app.initSessionPersistence(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("edunexus", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.tracer = tp
	}

	app.services = app.initServices(repos, persistence, cfg)
	app.stopSweep = make(chan struct{})
	go app.sweepSessions(sessionSweepInterval, cfg.JWT.ExpireTime)
	controllers := app.initControllers(app.services, cfg)

	router := gin.Default()
	app.Router = router
	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "" || cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app, nil
}

const sessionSweepInterval = time.Minute

// sweepSessions 定期释放已退出和令牌已过期的会话，连同导航状态和 AI 对话
func (a *App) sweepSessions(interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopSweep:
			return
		case <-ticker.C:
			a.sweepOnce(idle)
		}
	}
}

func (a *App) sweepOnce(idle time.Duration) {
	for _, sid := range a.services.sessions.Sweep(context.Background(), idle) {
		a.services.navigation.Drop(sid)
		a.services.notebookHub.DropSession(sid)
	}
}

// NewApp 初始化失败直接退出进程
func NewApp(cfg *config.Config) *App {
	app, err := New(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize application", zap.Error(err))
		log.Fatalf("Failed to initialize application: %v", err)
	}
	return app
}

// WatchConfig 配置文件变更时重新加载
func (a *App) WatchConfig() {
	if a.Config.File == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := configwatcher.Watch(ctx, a.Config.File, a.applyConfig); err != nil {
		cancel()
		logger.Log.Warn("Config watcher disabled", zap.Error(err))
		return
	}
	a.stopWatch = cancel
}

// Close 关闭 websocket、追踪和存储连接，可重复调用
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.stopWatch != nil {
			a.stopWatch()
		}
		if a.stopSweep != nil {
			close(a.stopSweep)
		}
		if a.services != nil {
			a.services.notebookHub.Close()
		}
		a.limiter.Stop()

		if a.tracer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.tracer.Shutdown(ctx); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
			cancel()
		}
		if a.Redis != nil {
			if err := a.Redis.Close(); err != nil {
				logger.Log.Error("Failed to close redis", zap.Error(err))
			}
		}
		if a.DB != nil {
			if err := database.Close(a.DB); err != nil {
				logger.Log.Error("Failed to close database", zap.Error(err))
			}
		}
		_ = logger.Log.Sync()
	})
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	a.WatchConfig()

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// 先断开 websocket，避免 Shutdown 等待长连接
	if a.services != nil {
		a.services.notebookHub.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close()
	logger.Log.Info("Server exiting")
}

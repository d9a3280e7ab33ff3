package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/api"
	"github.com/parceltrace/parceltrace/config"
	"github.com/parceltrace/parceltrace/internal/cron"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/internal/secrets"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/modules/emailglobal"
	"github.com/parceltrace/parceltrace/modules/emailuser"
	"github.com/parceltrace/parceltrace/modules/llmanalyzer"
	"github.com/parceltrace/parceltrace/modules/notifyemail"
	"github.com/parceltrace/parceltrace/modules/notifywebhook"
	"github.com/parceltrace/parceltrace/modules/registry"
	"github.com/parceltrace/parceltrace/services/imapwatch"
	"github.com/parceltrace/parceltrace/services/notifications"
	"github.com/parceltrace/parceltrace/services/orders"
	"github.com/parceltrace/parceltrace/services/queue"
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	db           *gorm.DB
	repositories *repository.Repositories
	encryptor    *secrets.Encryptor
	supervisor   *imapwatch.Supervisor
	registry     *registry.Registry
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)

	encryptor, err := secrets.NewEncryptor(cfg.AppConfig.EncryptionKey)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		db:           db,
		repositories: repos,
		encryptor:    encryptor,
		supervisor:   imapwatch.NewSupervisor(appLogger),
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

// Initialize registers the modules, builds the processing pipeline and wires
// the API routes. ctx is the application context watchers run on.
func (s *Server) Initialize(ctx context.Context) error {
	s.registry = registry.NewRegistry(s.log, s.repositories.ModuleConfigRepository)

	modules := []*registry.Manifest{
		emailuser.NewModule(ctx, s.log, s.repositories, s.encryptor, s.supervisor).Manifest(),
		emailglobal.NewModule(ctx, s.log, s.repositories, s.encryptor, s.supervisor).Manifest(),
		llmanalyzer.NewModule(s.log, s.repositories, s.encryptor).Manifest(),
		notifywebhook.NewModule(s.log).Manifest(),
		notifyemail.NewModule(s.log, s.repositories, s.encryptor).Manifest(),
	}
	for _, manifest := range modules {
		if err := s.registry.Register(manifest); err != nil {
			return err
		}
	}
	if err := s.registry.SyncConfigs(ctx); err != nil {
		return err
	}

	orderService := orders.NewService(s.log, s.db, s.repositories.OrderRepository, s.repositories.OrderStateRepository)
	notificationService := notifications.NewService(s.log, s.registry, s.repositories.NotificationConfigRepository)
	processor := queue.NewProcessor(s.log, s.repositories, s.registry, orderService, notificationService)
	retention := queue.NewRetention(s.log, s.repositories)
	s.cronManager = cron.NewCronManager(s.config, s.log, processor, retention)

	api.RegisterRoutes(s.router, s.repositories, s.registry, s.supervisor, s.cronManager, s.config.AppConfig.APIKey)

	return nil
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)

		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		log.Printf("❌ Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Initialize(ctx); err != nil {
		return err
	}

	// Start watchers of every enabled provider module.
	log.Println("Starting enabled modules...")
	s.wrapGoroutine("module_startup", func() {
		s.registry.StartupEnabled(ctx)
	})
	log.Println("✅ Modules started successfully")

	log.Println("Starting scheduler...")
	s.cronManager.StartCron()
	log.Println("✅ Scheduler started successfully")

	go s.wrapGoroutine("http_server", func() {
		log.Println("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ HTTP server error: %v", err)
		}
	})
	log.Println("✅ HTTP server started successfully")
	log.Println("parceltrace is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown(cancel)
}

func (s *Server) waitForShutdown(cancel context.CancelFunc) error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ HTTP server shutdown error: %v", err)
	} else {
		log.Println("✅ HTTP server shut down successfully")
	}

	log.Println("Stopping scheduler...")
	s.cronManager.Stop()

	// Stop watchers and give enabled modules their shutdown hooks.
	stopDone := make(chan struct{})
	go s.wrapGoroutine("module_shutdown", func() {
		defer close(stopDone)
		s.registry.ShutdownAll(shutdownCtx)
		s.supervisor.StopAll(10 * time.Second)
	})

	select {
	case <-stopDone:
		log.Println("✅ Modules stopped gracefully")
	case <-time.After(12 * time.Second):
		log.Println("⚠️ Module stop timed out, forcing exit")
	}

	cancel()

	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/PlanFox/app/controllers"
	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/app/repository"
	apiv1 "github.com/ManuelReschke/PlanFox/internal/api/v1"
	"github.com/ManuelReschke/PlanFox/internal/pkg/cache"
	"github.com/ManuelReschke/PlanFox/internal/pkg/calendar"
	"github.com/ManuelReschke/PlanFox/internal/pkg/config"
	"github.com/ManuelReschke/PlanFox/internal/pkg/constants"
	"github.com/ManuelReschke/PlanFox/internal/pkg/database"
	"github.com/ManuelReschke/PlanFox/internal/pkg/env"
	"github.com/ManuelReschke/PlanFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PlanFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PlanFox/internal/pkg/oauth"
	"github.com/ManuelReschke/PlanFox/internal/pkg/planner"
	"github.com/ManuelReschke/PlanFox/internal/pkg/planning"
	"github.com/ManuelReschke/PlanFox/internal/pkg/router"
	"github.com/ManuelReschke/PlanFox/internal/pkg/session"
)

func main() {
	app, shutdown := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("[Main] Shutting down")
		if err := app.Shutdown(); err != nil {
			log.Errorf("[Main] Shutdown: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	shutdown()
	if err != nil {
		log.Fatal(err)
	}
}

// NewApplication wires stores, providers, schedulers and the job queue into a
// fiber app. The returned func stops the background work.
func NewApplication() (*fiber.App, func()) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB(), cache.GetClient())
	repos := repository.GetGlobalRepositories()

	cfg, err := config.Load(env.GetEnv("PLANNER_CONFIG", "config/planner.yml"))
	if err != nil {
		if cfg == nil {
			log.Fatalf("[Main] Loading planner config: %v", err)
		}
		log.Warnf("[Main] Planner config: %v", err)
	}

	// calendar providers
	var google *calendar.GoogleProvider
	if key := env.GetEnv("GOOGLE_KEY", ""); key != "" {
		google = calendar.NewGoogleProvider(calendar.NewGoogleOAuthConfig(
			key,
			env.GetEnv("GOOGLE_SECRET", ""),
			oauth.CallbackURL(constants.CalendarCallbackRoute),
		))
	} else {
		log.Warn("[Main] GOOGLE_KEY not set, Google calendars and sign-in are disabled")
	}
	ics := calendar.NewICSProvider(nil)

	var refresher calendar.TokenRefresher
	if google != nil {
		refresher = google
	}
	client := calendar.NewClient(repos.CalendarAccount, refresher,
		calendar.WithDistributedLock(cache.NewLocker(cache.GetClient())))
	client.RegisterProvider(models.CalendarProviderICS, ics)
	if google != nil {
		client.RegisterProvider(models.CalendarProviderGoogle, google)
	}

	aggregator := calendar.NewAggregator(repos.CalendarAccount, client,
		calendar.WithConcurrency(cfg.FetchConcurrency),
		calendar.WithAccountTimeout(cfg.AccountTimeout),
		calendar.WithFetchRecorder(counter.Recorder{}),
	)

	scheduler := newScheduler(cfg)

	service := planning.NewService(planning.Dependencies{
		Config:    cfg,
		Events:    aggregator,
		Tasks:     repos.Task,
		Plans:     repos.DailyPlan,
		Slots:     repos.TimeSlot,
		Settings:  repos.User,
		Scheduler: scheduler,
	})

	// background jobs
	manager := jobqueue.GetManager()
	processors := &jobqueue.Processors{
		Accounts:     repos.CalendarAccount,
		Plans:        repos.DailyPlan,
		Credentials:  client,
		RefreshAhead: cfg.RefreshAhead,
	}
	if google != nil {
		processors.Events = google
	}
	if err := manager.Configure(processors, cfg.RefreshCron); err != nil {
		log.Fatalf("[Main] Configuring job queue: %v", err)
	}
	manager.Start()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "PlanFox",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	if _, err := apiv1.GetSwagger(); err != nil {
		log.Errorf("[Main] %v", err)
	}
	if specPath := findOpenAPIDocument(); specPath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: constants.DocsRoute,
			FilePath: specPath,
			Path:     "v1",
			Title:    "PlanFox API",
		}))
	}

	// sessions and sign-in
	session.NewSessionStore()
	googleSignIn := oauth.Setup()

	// controllers
	var connector controllers.CalendarConnector
	var feeds controllers.FeedValidator = ics
	if google != nil {
		connector = google
	}
	calendarController := controllers.NewCalendarController(service, repos.CalendarAccount, connector, feeds, cache.KV{}).
		WithSettingsURL(constants.SettingsRoute)

	router.InstallRouter(app, router.Dependencies{
		API: apiv1.Controllers{
			Calendar: calendarController,
			Planning: controllers.NewPlanningController(service, manager),
			Tasks:    controllers.NewTaskController(repos.Task, repos.TimeSlot),
			Users:    controllers.NewUserController(repos.User),
			Admin:    controllers.NewAdminQueueController(repos.Queue, manager.GetQueue(), manager),
		},
		Auth:         controllers.NewAuthController(repos.User),
		APIKeys:      repos.User,
		GoogleSignIn: googleSignIn,
	})

	shutdown := func() {
		manager.Stop()
		if closer, ok := scheduler.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				log.Warnf("[Main] Closing scheduler: %v", err)
			}
		}
	}
	return app, shutdown
}

// newScheduler picks the Gemini backend when configured and falls back to greedy
func newScheduler(cfg *config.Planner) planner.Scheduler {
	if cfg.Scheduler != config.SchedulerGemini {
		return planner.NewGreedy()
	}
	gemini, err := planner.NewGemini(context.Background(), env.GetEnv("GEMINI_API_KEY", ""), cfg.GeminiModel)
	if err != nil {
		log.Warnf("[Main] Gemini scheduler unavailable, using greedy: %v", err)
		return planner.NewGreedy()
	}
	return gemini
}

func findOpenAPIDocument() string {
	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/planfox to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		candidate := path + "internal/api/v1/openapi.yml"
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	log.Warn("[Main] openapi.yml not found, /docs/api is disabled")
	return ""
}

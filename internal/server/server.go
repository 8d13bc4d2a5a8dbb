package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/telcousage/internal/config"
	"github.com/smallbiznis/telcousage/internal/observability"
	obslogger "github.com/smallbiznis/telcousage/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/telcousage/internal/observability/metrics"
	obstracing "github.com/smallbiznis/telcousage/internal/observability/tracing"
	"github.com/smallbiznis/telcousage/internal/ratelimit"
	"github.com/smallbiznis/telcousage/internal/stats"
	statsdomain "github.com/smallbiznis/telcousage/internal/stats/domain"
	"github.com/smallbiznis/telcousage/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/telcousage/internal/subscription/domain"
	"github.com/smallbiznis/telcousage/internal/usage"
	usagedomain "github.com/smallbiznis/telcousage/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	observability.HTTPModule,
	fx.Provide(registerGin),
	ratelimit.Module,
	subscription.Module,
	usage.Module,
	stats.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log, obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	validator       *validator.Validate
	subscriptionSvc subscriptiondomain.Service
	usageSvc        usagedomain.Service
	statsSvc        statsdomain.Service
	usageLimiter    *ratelimit.UsageIngestLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	SubscriptionSvc subscriptiondomain.Service
	UsageSvc        usagedomain.Service
	StatsSvc        statsdomain.Service
	UsageLimiter    *ratelimit.UsageIngestLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics           `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		validator:       newValidator(),
		subscriptionSvc: p.SubscriptionSvc,
		usageSvc:        p.UsageSvc,
		statsSvc:        p.StatsSvc,
		usageLimiter:    p.UsageLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.RegisterStatsRoutes()
	svc.RegisterUsageRoutes()
	svc.RegisterSubscriptionRoutes()

	return svc
}

func (s *Server) RegisterStatsRoutes() {
	group := s.engine.Group("/stats")
	group.POST("/exceeded", s.ExceededSubscriptions)
	group.POST("/usage-metrics", s.UsageMetrics)
}

func (s *Server) RegisterUsageRoutes() {
	s.engine.POST("/usage", s.UsageIngestRateLimit(), s.RecordUsage)
}

func (s *Server) RegisterSubscriptionRoutes() {
	group := s.engine.Group("/subscriptions")
	group.POST("", s.CreateSubscription)
	group.GET("/:carrier/:id", s.GetSubscription)
	group.POST("/:carrier/:id/status", s.TransitionSubscription)
	group.DELETE("/:carrier/:id", s.DeleteSubscription)
}

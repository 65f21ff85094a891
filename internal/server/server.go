package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/subsight/internal/config"
	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
	"github.com/smallbiznis/subsight/internal/observability"
	obslogger "github.com/smallbiznis/subsight/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/subsight/internal/observability/metrics"
	storedomain "github.com/smallbiznis/subsight/internal/store/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

type EngineParams struct {
	fx.In

	ObsCfg     observability.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	if !p.ObsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           p.ObsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(p.ObsMetrics.Handler()))

	return r
}

func run(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	log = log.Named("http.server")
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
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
	engine       *gin.Engine
	dashboardSvc dashboarddomain.Service
	runs         storedomain.Loader
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	DashboardSvc dashboarddomain.Service
	Runs         storedomain.Loader `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		dashboardSvc: p.DashboardSvc,
		runs:         p.Runs,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Dashboard --------
	dashboard := api.Group("/dashboard")
	{
		dashboard.GET("", s.GetDashboard)
		dashboard.GET("/kpis", s.GetDashboardKPIs)
		dashboard.GET("/mrr", s.GetDashboardMRR)
		dashboard.GET("/active-subscriptions", s.GetDashboardActiveSubscriptions)
		dashboard.GET("/revenue-by-channel", s.GetDashboardRevenueByChannel)
		dashboard.GET("/retention", s.GetDashboardRetention)
	}

	// -------- Runs --------
	api.GET("/runs/latest", s.GetLatestRun)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

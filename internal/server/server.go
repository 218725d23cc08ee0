package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/cargosettle/internal/config"
	contractdomain "github.com/smallbiznis/cargosettle/internal/contract/domain"
	"github.com/smallbiznis/cargosettle/internal/observability"
	obsmiddleware "github.com/smallbiznis/cargosettle/internal/observability/logger"
	settlementdomain "github.com/smallbiznis/cargosettle/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger) *gin.Engine {
	return NewEngine(obsCfg, log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
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
	engine        *gin.Engine
	cfg           config.Config
	settlementSvc settlementdomain.Service
	contractSvc   contractdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	SettlementSvc settlementdomain.Service
	ContractSvc   contractdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		settlementSvc: p.SettlementSvc,
		contractSvc:   p.ContractSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Settlements --------
	api.GET("/settlements", s.ListSettlements)
	api.POST("/settlements", s.CreateSettlement)
	api.POST("/settlements/transition", s.BulkTransitionSettlements)
	api.GET("/settlements/:id", s.GetSettlementByID)
	api.PUT("/settlements/:id/quantities", s.SetSettlementQuantities)
	api.POST("/settlements/:id/calculate", s.CalculateSettlement)
	api.POST("/settlements/:id/transition", s.TransitionSettlement)
	api.PATCH("/settlements/:id/payment", s.UpdateSettlementPayment)
	api.GET("/settlements/:id/history", s.GetSettlementHistory)

	// -------- Charges --------
	api.GET("/settlements/:id/charges", s.ListSettlementCharges)
	api.POST("/settlements/:id/charges", s.AddSettlementCharge)
	api.PATCH("/settlements/:id/charges/:chargeId", s.UpdateSettlementCharge)
	api.DELETE("/settlements/:id/charges/:chargeId", s.RemoveSettlementCharge)

	// -------- Contracts --------
	api.GET("/contracts/:id", s.GetContractByID)
	api.POST("/contracts/:id/complete", s.CompleteContract)
}

// actorID identifies the operator behind a request. There is no account
// system here; upstream gateways inject the header.
func actorID(c *gin.Context) string {
	if v := c.GetHeader("X-Actor-Id"); v != "" {
		return v
	}
	return "anonymous"
}

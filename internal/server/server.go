package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/dispatch/internal/config"
	matchingdomain "github.com/smallbiznis/dispatch/internal/matching/domain"
	obsmiddleware "github.com/smallbiznis/dispatch/internal/observability/logger"
	obstracing "github.com/smallbiznis/dispatch/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/dispatch/internal/order/domain"
	productdomain "github.com/smallbiznis/dispatch/internal/product/domain"
	restaurantdomain "github.com/smallbiznis/dispatch/internal/restaurant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           isDebug(cfg),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config) *gin.Engine {
	return NewEngine(cfg)
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
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	ProductSvc    productdomain.Service
	RestaurantSvc restaurantdomain.Service
	OrderSvc      orderdomain.Service
	MatchingSvc   matchingdomain.Service
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	productSvc    productdomain.Service
	restaurantSvc restaurantdomain.Service
	orderSvc      orderdomain.Service
	matchingSvc   matchingdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		productSvc:    p.ProductSvc,
		restaurantSvc: p.RestaurantSvc,
		orderSvc:      p.OrderSvc,
		matchingSvc:   p.MatchingSvc,
	}

	svc.RegisterAPIRoutes()
	return svc
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/products", s.ListAvailableProducts)
	api.GET("/products/all", s.ListProducts)
	api.GET("/products/:id", s.GetProductByID)
	api.POST("/products", s.CreateProduct)

	api.GET("/restaurants", s.ListRestaurants)
	api.GET("/restaurants/:id", s.GetRestaurantByID)
	api.POST("/restaurants", s.CreateRestaurant)
	api.PUT("/restaurants/:id/menu/:product_id", s.SetMenuAvailability)

	api.GET("/orders", s.ListOrders)
	api.POST("/orders", s.RegisterOrder)
	api.GET("/orders/pending", s.ListPendingMatches)
	api.GET("/orders/:id", s.GetOrderByID)
	api.POST("/orders/:id/assign", s.AssignRestaurant)
	api.POST("/orders/:id/status", s.AdvanceOrderStatus)
}

func isDebug(cfg config.Config) bool {
	if strings.EqualFold(strings.TrimSpace(cfg.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/mysteryart/internal/checkout"
	checkoutdomain "github.com/smallbiznis/mysteryart/internal/checkout/domain"
	"github.com/smallbiznis/mysteryart/internal/config"
	"github.com/smallbiznis/mysteryart/internal/fulfillment"
	fulfillmentdomain "github.com/smallbiznis/mysteryart/internal/fulfillment/domain"
	"github.com/smallbiznis/mysteryart/internal/observability"
	obsmiddleware "github.com/smallbiznis/mysteryart/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/mysteryart/internal/observability/metrics"
	obstracing "github.com/smallbiznis/mysteryart/internal/observability/tracing"
	"github.com/smallbiznis/mysteryart/internal/payment"
	paymentdomain "github.com/smallbiznis/mysteryart/internal/payment/domain"
	"github.com/smallbiznis/mysteryart/internal/payment/webhook"
	"github.com/smallbiznis/mysteryart/internal/providers"
	"github.com/smallbiznis/mysteryart/internal/ratelimit"
	"github.com/smallbiznis/mysteryart/internal/scheduler"
	"github.com/smallbiznis/mysteryart/internal/tier"
	tierdomain "github.com/smallbiznis/mysteryart/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	maxWebhookBodyBytes = 1 << 20
	adminTokenHeader    = "X-Admin-Token"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	tier.Module,
	checkout.Module,
	payment.Module,
	fulfillment.Module,
	providers.Module,
	ratelimit.Module,
	scheduler.Module,
	fx.Provide(provideWebhookIngester),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

// WebhookIngester verifies a provider delivery and runs fulfillment for it.
type WebhookIngester interface {
	IngestWebhook(ctx context.Context, payload []byte, signatureHeader string) (*paymentdomain.PaymentEvent, fulfillmentdomain.Result, error)
}

func provideWebhookIngester(s *webhook.Service) WebhookIngester {
	return s
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
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

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	catalog        tierdomain.Catalog
	checkoutSvc    checkoutdomain.Service
	webhooks       WebhookIngester
	fulfillmentSvc fulfillmentdomain.Service
	limiter        *ratelimit.CheckoutLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	Catalog        tierdomain.Catalog
	CheckoutSvc    checkoutdomain.Service
	Webhooks       WebhookIngester
	FulfillmentSvc fulfillmentdomain.Service
	Limiter        *ratelimit.CheckoutLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http"),
		catalog:        p.Catalog,
		checkoutSvc:    p.CheckoutSvc,
		webhooks:       p.Webhooks,
		fulfillmentSvc: p.FulfillmentSvc,
		limiter:        p.Limiter,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/webhooks")
	hooks.POST("/stripe", s.HandleStripeWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.GET("/tiers", s.ListTiers)
	api.GET("/tiers/:id", s.GetTier)
	api.POST("/checkout", ratelimit.GinMiddleware(s.limiter, s.obsMetrics, "checkout"), s.CreateCheckout)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/fulfillments", s.AdminAuthRequired())
	admin.GET("", s.ListFulfillments)
	admin.GET("/:order_id", s.GetFulfillment)
	admin.POST("/:order_id/redrive", s.RedriveFulfillment)
}

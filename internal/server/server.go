package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/schoolbill/internal/audit/domain"
	"github.com/smallbiznis/schoolbill/internal/authorization"
	"github.com/smallbiznis/schoolbill/internal/catalog"
	"github.com/smallbiznis/schoolbill/internal/config"
	documentdomain "github.com/smallbiznis/schoolbill/internal/document/domain"
	feetypedomain "github.com/smallbiznis/schoolbill/internal/feetype/domain"
	invoicedomain "github.com/smallbiznis/schoolbill/internal/invoice/domain"
	"github.com/smallbiznis/schoolbill/internal/observability"
	obsmiddleware "github.com/smallbiznis/schoolbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/schoolbill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/schoolbill/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/schoolbill/internal/payment/domain"
	"github.com/smallbiznis/schoolbill/internal/providers/pdf"
	"github.com/smallbiznis/schoolbill/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

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

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
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
	policy        *config.PolicyHolder
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	feeTypeSvc    feetypedomain.Service
	invoiceSvc    invoicedomain.Service
	paymentSvc    paymentdomain.Service
	documentSvc   documentdomain.Service
	catalog       catalog.Catalog
	pdf           pdf.Provider
	uploadLimiter *ratelimit.UploadLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Policy        *config.PolicyHolder
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	FeeTypeSvc    feetypedomain.Service
	InvoiceSvc    invoicedomain.Service
	PaymentSvc    paymentdomain.Service
	DocumentSvc   documentdomain.Service
	Catalog       catalog.Catalog
	PDF           pdf.Provider
	UploadLimiter *ratelimit.UploadLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		policy:        p.Policy,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		feeTypeSvc:    p.FeeTypeSvc,
		invoiceSvc:    p.InvoiceSvc,
		paymentSvc:    p.PaymentSvc,
		documentSvc:   p.DocumentSvc,
		catalog:       p.Catalog,
		pdf:           p.PDF,
		uploadLimiter: p.UploadLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.RegisterAPIRoutes()
	return svc
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api", s.ActorRequired())

	feeTypes := api.Group("/fee-types")
	feeTypes.POST("", s.authorize(authorization.ObjectFeeType, authorization.ActionFeeTypeManage), s.CreateFeeType)
	feeTypes.GET("", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListFeeTypes)
	feeTypes.GET("/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetFeeType)
	feeTypes.DELETE("/:id", s.authorize(authorization.ObjectFeeType, authorization.ActionFeeTypeManage), s.DeleteFeeType)

	invoices := api.Group("/invoices")
	invoices.POST("", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceManage), s.CreateInvoice)
	invoices.GET("", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListInvoices)
	invoices.GET("/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoice)
	invoices.GET("/:id/statement.pdf", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.InvoiceStatementPDF)
	invoices.POST("/:id/items", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceManage), s.AddInvoiceItem)
	invoices.DELETE("/:id/items/:itemId", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceManage), s.RemoveInvoiceItem)
	invoices.POST("/:id/recompute", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceManage), s.RecomputeInvoice)
	invoices.POST("/:id/cancel", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceCancel), s.CancelInvoice)
	invoices.POST("/:id/payments", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentRecord), s.RecordPayment)
	invoices.GET("/:id/payments", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListInvoicePayments)

	payments := api.Group("/payments")
	payments.GET("/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetPayment)
	payments.GET("/:id/receipt.pdf", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.PaymentReceiptPDF)
	payments.POST("/:id/reverse", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentReverse), s.ReversePayment)

	// Document visibility is decided per record by the document service.
	documents := api.Group("/documents")
	documents.GET("", s.ListDocuments)
	documents.POST("", s.UploadRateLimit(), s.UploadDocument)
	documents.GET("/:id/content", s.DownloadDocument)
	documents.DELETE("/:id", s.DeleteDocument)

	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

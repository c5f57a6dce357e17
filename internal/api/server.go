package api

import (
	"context"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/glory2yahpub/marketplace/docs"
	v1 "github.com/glory2yahpub/marketplace/internal/api/handler/v1"
	"github.com/glory2yahpub/marketplace/internal/api/middleware"
	"github.com/glory2yahpub/marketplace/internal/config"
	"github.com/glory2yahpub/marketplace/internal/metrics"
	"github.com/glory2yahpub/marketplace/internal/notify"
	"github.com/glory2yahpub/marketplace/internal/repository"
	"github.com/glory2yahpub/marketplace/internal/repository/dao"
	"github.com/glory2yahpub/marketplace/internal/service"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine

	chat      *v1.ChatHandler
	sweeper   *service.Sweeper
	publisher *notify.AMQPPublisher
}

type handlers struct {
	auth        *v1.AuthHandler
	ledger      *v1.LedgerHandler
	listing     *v1.ListingHandler
	batch       *v1.BatchHandler
	negotiation *v1.NegotiationHandler
	chat        *v1.ChatHandler
}

func NewServer(conf *config.AppConfig, db *gorm.DB) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()

	store := repository.NewStore(db, conf.Postgres.LockTimeout)
	notifier := s.initNotifier()
	retry := service.RetryPolicy{
		MaxAttempts:     conf.Retry.MaxAttempts,
		InitialInterval: conf.Retry.InitialInterval,
	}

	ledgerSvc := service.NewLedgerService(store, notifier, retry)
	batchSvc := service.NewBatchService(store, notifier, retry, service.BatchConfig{
		Size:          conf.Batch.Size,
		ShareReward:   conf.Batch.ShareReward,
		Title:         conf.Batch.Title,
		Description:   conf.Batch.Description,
		PublicBaseURL: conf.Batch.PublicBaseURL,
	})
	catalogSvc := service.NewCatalogService(store, batchSvc, notifier, retry)
	negotiationSvc := service.NewNegotiationService(store, notifier, retry)

	s.sweeper = service.NewSweeper(service.SweeperConfig{
		StaleAfter: conf.Negotiation.StaleAfter,
		Interval:   conf.Negotiation.SweepInterval,
	}, negotiationSvc)
	s.chat = v1.NewChatHandler(negotiationSvc, conf.API.AllowedCORSDomains)

	s.MountHandlers(handlers{
		auth:        s.initAuthHandler(db),
		ledger:      v1.NewLedgerHandler(ledgerSvc),
		listing:     v1.NewListingHandler(catalogSvc),
		batch:       v1.NewBatchHandler(batchSvc),
		negotiation: v1.NewNegotiationHandler(negotiationSvc),
		chat:        s.chat,
	})

	return s
}

func (s *Server) initAuthHandler(db *gorm.DB) *v1.AuthHandler {
	userDAO := dao.NewUserDAO(db)
	repo := repository.NewUserRepository(userDAO)
	svc := service.NewAuthService(repo, s.Config.API.AdminWhatsApp)
	handler := v1.NewAuthHandler(s.Config.API, svc)

	return handler
}

func (s *Server) initNotifier() *notify.WhatsApp {
	conf := s.Config.Notification
	if conf.AMQPURL == "" {
		zap.L().Info("notification broker not configured, building contact links only")
		return notify.NewWhatsApp(s.Config.API.AdminWhatsApp, nil)
	}

	s.publisher = notify.NewAMQPPublisher(conf.AMQPURL, conf.Queue, conf.ConnectTimeout)
	return notify.NewWhatsApp(s.Config.API.AdminWhatsApp, s.publisher)
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
	s.Router.Use(metrics.Middleware())
}

func (s *Server) MountHandlers(h handlers) {
	const basePath = "/api/v1"

	authn := middleware.NewAuthenticator(s.Config.API.JWTSigningKey)

	public := s.Router.Group(basePath)
	{
		public.POST("/auth/signup", h.auth.HandleSignup)
		public.POST("/auth/login", h.auth.HandleLogin)

		public.GET("/batches", h.batch.HandleListBatches)
		public.GET("/batches/latest", h.batch.HandleLatestBatch)
		public.GET("/batches/:id", h.batch.HandleGetBatch)
		public.POST("/batches/:id/share", h.batch.HandleShareBatch)
	}

	members := s.Router.Group(basePath, authn.VerifyJWT())
	{
		members.GET("/accounts/me", h.ledger.HandleGetMyAccount)
		members.GET("/accounts/me/entries", h.ledger.HandleGetMyEntries)
		members.POST("/topups", h.ledger.HandleRequestTopUp)
		members.GET("/topups", h.ledger.HandleListMyTopUps)
		members.POST("/topups/:requestID/proof", h.ledger.HandleAttachProof)

		members.POST("/listings", h.listing.HandleSubmitListing)
		members.GET("/listings", h.listing.HandleListListings)
		members.GET("/listings/:id", h.listing.HandleGetListing)
		members.PUT("/listings/:id/price", h.listing.HandleUpdatePrice)

		members.POST("/checkout", h.negotiation.HandleCheckout)
		members.GET("/negotiations", h.negotiation.HandleListNegotiations)
		members.GET("/negotiations/:id", h.negotiation.HandleGetNegotiation)
		members.POST("/negotiations/:id/shipping", h.negotiation.HandleSetShipping)
		members.POST("/negotiations/:id/confirm", h.negotiation.HandleConfirm)
		members.POST("/negotiations/:id/decline", h.negotiation.HandleDecline)
		members.POST("/negotiations/:id/receipt", h.negotiation.HandleReceipt)

		// Chat
		members.GET("/negotiations/:id/messages", h.chat.HandleListMessages)
		members.POST("/negotiations/:id/messages", h.chat.HandlePostMessage)
		members.GET("/negotiations/:id/ws", h.chat.HandleWebSocket)
	}

	admin := s.Router.Group(basePath+"/admin", authn.VerifyJWT(), middleware.RequireAdmin())
	{
		admin.GET("/topups/pending", h.ledger.HandleListPendingTopUps)
		admin.POST("/topups/:requestID/approve", h.ledger.HandleApproveTopUp)
		admin.POST("/topups/:requestID/reject", h.ledger.HandleRejectTopUp)
		admin.POST("/accounts/:identity/balance", h.ledger.HandleSetBalance)
		admin.POST("/accounts/:identity/adjust", h.ledger.HandleAdjustBalance)

		admin.POST("/listings/:id/approve", h.listing.HandleApproveListing)
		admin.POST("/listings/:id/reject", h.listing.HandleRejectListing)
		admin.DELETE("/listings/:id", h.listing.HandleDeleteListing)

		admin.POST("/batches", h.batch.HandleCreateBatch)
		admin.POST("/batches/:id/listings", h.batch.HandleAddToBatch)
		admin.DELETE("/batches/:id/listings/:listingID", h.batch.HandleRemoveFromBatch)
		admin.DELETE("/batches/:id", h.batch.HandleDeleteBatch)

		admin.POST("/negotiations/:id/cancel", h.negotiation.HandleCancel)
	}

	s.Router.GET("/", v1.HandleHealthcheck)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Gkach marketplace API"
	docs.SwaggerInfo.Description = "Credit ledger, escrow negotiations and ad batch rotation."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}

// RunBackground starts the chat hub and the negotiation sweeper. Both stop
// when ctx is done.
func (s *Server) RunBackground(ctx context.Context) {
	go s.chat.Run(ctx)
	go s.sweeper.Run(ctx)
}

func (s *Server) Close() error {
	if s.publisher == nil {
		return nil
	}

	return s.publisher.Close()
}

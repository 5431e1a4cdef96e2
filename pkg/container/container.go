package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"casanova-portal/internal/config"
	"casanova-portal/internal/domains/payment/gateway"
	"casanova-portal/internal/domains/payment/gateway/redsys"
	"casanova-portal/internal/domains/payment/gateway/stripe"
	"casanova-portal/internal/domains/payment/handler"
	"casanova-portal/internal/domains/payment/ledger"
	"casanova-portal/internal/domains/payment/ledger/giav"
	"casanova-portal/internal/domains/payment/repository"
	"casanova-portal/internal/domains/payment/service"
	infraCache "casanova-portal/internal/infrastructure/cache"
	"casanova-portal/internal/infrastructure/database"
	"casanova-portal/internal/infrastructure/queue"
	"casanova-portal/pkg/cache"
	"casanova-portal/pkg/jwtauth"
	pkgLogger "casanova-portal/pkg/logger"
)

// ========================================
// CONTAINER
// ========================================
// Container is the root of the dependency graph. Initialization order
// matters: config, infrastructure, repositories, gateways, services,
// handlers. Everything is a singleton for the process lifetime.
type Container struct {
	// Infrastructure
	Config      *config.Config
	DB          *database.PostgresDB
	Redis       *infraCache.RedisClient
	Cache       cache.Cache
	JWTManager  *jwtauth.Manager
	QueueClient *queue.Client

	// Payments domain
	IntentRepo     repository.IntentRepository
	Ledger         ledger.Ledger
	StripeGateway  gateway.StripeGateway
	RedsysGateway  gateway.RedsysGateway
	PaymentService service.PaymentService

	// HTTP
	PaymentHandler *handler.PaymentHandler
	WebhookHandler *handler.WebhookHandler
}

func NewContainer() (*Container, error) {
	c := &Container{}

	// Step 1: configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg
	pkgLogger.Init(cfg.App.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Step 2: infrastructure
	c.DB = database.NewPostgresDB(&database.DBConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Username: cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err := c.DB.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	c.Redis = infraCache.NewRedisClient(&infraCache.RedisConfig{
		Addr:     cfg.Redis.Host,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := c.Redis.Connect(ctx); err != nil {
		c.DB.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	c.Cache = infraCache.NewRedisCache(c.Redis.Client)

	c.JWTManager = jwtauth.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute,
	)
	c.QueueClient = queue.NewClient(cfg.Redis.Host)

	// Step 3: repositories and external collaborators
	c.IntentRepo = repository.NewIntentRepository(c.DB.Pool)

	if cfg.GIAV.IsConfigured() {
		c.Ledger = giav.NewClient(&giav.Config{
			Endpoint: cfg.GIAV.Endpoint,
			Agency:   cfg.GIAV.Agency,
			Username: cfg.GIAV.Username,
			Password: cfg.GIAV.Password,
			Timeout:  cfg.GIAV.Timeout,
		})
	} else {
		// Degraded mode: payment context and write-backs report typed errors
		// instead of panicking on a nil collaborator.
		log.Println("[CONTAINER] GIAV not configured, running without the booking ledger")
		c.Ledger = ledger.Unavailable{}
	}

	c.StripeGateway = stripe.NewClient(stripe.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		BaseURL:       cfg.Stripe.BaseURL,
		Country:       cfg.Stripe.Country,
		Timeout:       cfg.Stripe.Timeout,
	}, pkgLogger.New("stripe"))
	c.RedsysGateway = redsys.NewClient(redsys.Config{
		PayURL:      cfg.Redsys.PayURL,
		FolderParam: cfg.Redsys.FolderParam,
	})

	// Step 4: services
	depositPolicy := ledger.NewStandardDepositPolicy(
		cfg.Payments.DepositPercent,
		cfg.Payments.MinAdvanceDays,
	)
	c.PaymentService = service.NewPaymentService(
		c.IntentRepo,
		c.Ledger,
		depositPolicy,
		c.StripeGateway,
		c.RedsysGateway,
		c.Cache,
		c.QueueClient,
		pkgLogger.New("payments"),
		service.Options{
			ContextCacheTTL:    cfg.Payments.ContextCacheTTL,
			LedgerWriteTimeout: cfg.Payments.LedgerWriteTimeout,
		},
	)

	// Step 5: handlers
	c.PaymentHandler = handler.NewPaymentHandler(c.PaymentService, pkgLogger.New("http"))
	c.WebhookHandler = handler.NewWebhookHandler(c.PaymentService, pkgLogger.New("http"))

	log.Println("[CONTAINER] Initialized")
	return c, nil
}

// Cleanup releases infrastructure resources in reverse order.
func (c *Container) Cleanup() {
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			log.Printf("[CONTAINER] Queue client close error: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Printf("[CONTAINER] Redis close error: %v", err)
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
	log.Println("[CONTAINER] Cleaned up")
}

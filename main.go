package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/panelapp/addressmapper/handlers"
	"github.com/panelapp/addressmapper/internal/config"
	"github.com/panelapp/addressmapper/internal/database"
	"github.com/panelapp/addressmapper/internal/identity"
	"github.com/panelapp/addressmapper/internal/lookup"
	"github.com/panelapp/addressmapper/internal/nonce"
	"github.com/panelapp/addressmapper/internal/tokens"
	"github.com/panelapp/addressmapper/pkg/logger"
	"github.com/panelapp/addressmapper/pkg/metrics"
	"github.com/panelapp/addressmapper/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging is controlled with LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v lookup=%s", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Partner.LookupEndpoint)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// The panels are served inside partner-hosted iframes, so cross-origin
	// requests are the normal case for every endpoint here.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	ctx := context.Background()

	// Redis first: nonce replay tracking wants it, and the rate limiter can
	// use it too when configured.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// Installed on the panel routes after token validation, so throttling
	// keys on the verified partner account instead of the client IP.
	var panelLimit []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			panelLimit = append(panelLimit, middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			panelLimit = append(panelLimit, middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Nonce store: Redis gives atomic check-and-consume across replicas; the
	// in-memory store only protects a single process.
	var nonces nonce.Store
	if redisClient != nil {
		nonces = nonce.NewRedisStore(redisClient, "nonce:")
	} else {
		logger.Warn("using in-memory nonce store; replay protection is per-process only")
		nonces = nonce.NewMemoryStore()
	}

	// Identity storage: Mongo when configured and reachable, otherwise the
	// in-memory repositories (dev/test only, mappings vanish on restart).
	var accounts identity.AccountRepository
	var users identity.UserRepository
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		mongoClient, err = database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, 5, cfg.MongoDB.Timeout)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v", err)
		} else {
			defer func() { _ = mongoClient.Disconnect(ctx) }()
			db := mongoClient.Database(cfg.MongoDB.Database)
			accountRepo := identity.NewMongoAccountRepository(db.Collection("accounts"))
			userRepo := identity.NewMongoUserRepository(db.Collection("users"))
			if err := accountRepo.EnsureIndexes(ctx); err != nil {
				logger.Fatalf("failed to create account indexes: %v", err)
			}
			if err := userRepo.EnsureIndexes(ctx); err != nil {
				logger.Fatalf("failed to create user indexes: %v", err)
			}
			accounts = accountRepo
			users = userRepo
		}
	}
	if accounts == nil {
		logger.Warn("using in-memory identity storage; mappings are lost on restart")
		accounts = identity.NewMemoryAccountRepository()
		users = identity.NewMemoryUserRepository()
	}

	validator := tokens.NewValidator(cfg.Partner, nonces)
	signer := tokens.NewSigner(cfg.Partner, nonces)
	lookupClient := lookup.NewHTTPClient(cfg.Partner.LookupEndpoint, signer, cfg.Partner.LookupTimeout)
	reconciler := identity.NewReconciler(cfg.Partner, accounts, users, lookupClient)

	handlers.NewPanelsHandler(validator, reconciler).Register(r, panelLimit...)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// ready only once the pieces a request actually needs are in place
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		deps["secret"] = cfg.Partner.SharedSecret != ""
		if !deps["secret"] {
			ready = false
		}
		if cfg.MongoDB.URI != "" {
			deps["mongodb"] = mongoClient != nil
			if !deps["mongodb"] {
				ready = false
			}
		} else {
			deps["mongodb"] = true
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil
			if !deps["redis"] {
				ready = false
			}
		} else {
			deps["redis"] = true
		}

		status := http.StatusOK
		state := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting panel service on %s (nonce_enforced=%v create_accounts=%v create_users=%v)",
		addr, cfg.Partner.EnforceNonce, cfg.Partner.CreateAccounts, cfg.Partner.CreateUsers)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joy095/booking-core/clients"
	"github.com/joy095/booking-core/config"
	"github.com/joy095/booking-core/config/db"
	redisconfig "github.com/joy095/booking-core/config/redis"
	"github.com/joy095/booking-core/controllers/booking_controller"
	"github.com/joy095/booking-core/controllers/payment_controller"
	"github.com/joy095/booking-core/controllers/slot_controller"
	"github.com/joy095/booking-core/guards"
	"github.com/joy095/booking-core/healer"
	"github.com/joy095/booking-core/logger"
	"github.com/joy095/booking-core/middlewares/cors"
	"github.com/joy095/booking-core/permissions"
	"github.com/joy095/booking-core/routes"
	"github.com/joy095/booking-core/statemachine"
)

func init() {
	logger.InitLoggers()
	config.LoadEnv()
}

func main() {
	db.Connect()
	defer db.Close()

	port := config.GetEnv("PORT", "8081")

	reservationTTL := config.GetEnvDuration("RESERVATION_TTL", 10*time.Minute)
	graphTTL := config.GetEnvDuration("STATE_GRAPH_TTL", time.Minute)
	permTTL := config.GetEnvDuration("PERMISSION_GRAPH_TTL", time.Minute)
	healInterval := config.GetEnvDuration("HEAL_INTERVAL", time.Minute)
	healBatch := config.GetEnvInt("HEAL_BATCH_SIZE", 50)

	engine := statemachine.NewDBEngine(db.DB, graphTTL)
	graph := permissions.NewDBGraph(db.DB, permTTL)
	heal := healer.New(db.DB, engine, healBatch, healInterval)

	abuseWindow := config.GetEnvDuration("ABUSE_WINDOW", 24*time.Hour)
	abuse := guards.NewAbuseDetector(db.DB,
		abuseWindow,
		config.GetEnvInt("ABUSE_MAX_BOOKINGS", 10),
		config.GetEnvInt("ABUSE_MAX_FAILED_PAYMENTS", 5),
		config.GetEnvInt("ABUSE_MAX_EXPIRED_RATIO_PCT", 60),
	)

	// Nonce dedup and the engine's fixed-window limiter prefer the shared
	// Redis store so the guarantees hold across replicas; without Redis they
	// degrade to per-process.
	var nonces guards.NonceStore
	var limiter guards.RateLimiter
	nonceTTL := config.GetEnvDuration("NONCE_TTL", 15*time.Minute)
	rateMax := config.GetEnvInt("BOOKING_RATE_MAX", 10)
	rateWindow := config.GetEnvDuration("BOOKING_RATE_WINDOW", time.Minute)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if rdb, err := redisconfig.GetRedisClient(ctx); err == nil {
		nonces = guards.NewRedisNonceStore(rdb, nonceTTL)
		limiter = guards.NewRedisRateLimiter(rdb, rateMax, rateWindow)
		defer redisconfig.CloseRedis()
	} else {
		logger.WarnLogger.Warnf("Redis unavailable (%v); nonce and rate guarantees are per-process", err)
		nonces = guards.NewMemoryNonceStore(nonceTTL, config.GetEnvInt("NONCE_MAX_ENTRIES", 100_000))
		limiter = guards.NewMemoryRateLimiter(rateMax, rateWindow)
	}

	verifier := clients.NewRazorpayVerifier(os.Getenv("RAZORPAY_WEBHOOK_SECRET"))

	bookingSvc := booking_controller.NewBookingService(db.DB, engine, graph, heal, limiter, abuse, reservationTTL)
	paymentSvc := payment_controller.NewPaymentService(db.DB, engine, verifier, heal)
	slotSvc := slot_controller.NewSlotService(db.DB)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.CorsMiddleware())

	routes.RegisterBookingRoutes(r, bookingSvc, graph, nonces)
	routes.RegisterPaymentRoutes(r, paymentSvc)
	routes.RegisterSlotRoutes(r, slotSvc)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok from booking core"})
	})

	// Scheduled healing guarantees progress even when no request traffic
	// triggers the lazy path.
	go heal.Run(ctx)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		fmt.Printf("Booking core listening on :%s\n", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server failed to listen: %v\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("Shutting down booking core...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Server forced to shutdown: %v\n", err)
	}

	fmt.Println("Booking core exited gracefully.")
}

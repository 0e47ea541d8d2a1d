package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"floodwatch/config"
	"floodwatch/database"
	"floodwatch/handlers"
	"floodwatch/kafka"
	"floodwatch/notify"
	"floodwatch/services"
	"floodwatch/websocket"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting FloodWatch Backend Server on port %s", cfg.Server.Port)

	// Initialize database
	db, err := database.New(cfg.GetDatabaseURL())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Println("Database connection established")

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(cfg.Server.AllowOrigins)
	go wsHub.Run()

	log.Println("WebSocket hub started")

	// Initialize notification delivery
	notifier := notify.NewNotifier(cfg.Telegram)
	if notifier.Enabled() {
		log.Println("Telegram notifications enabled")
	} else {
		log.Println("Telegram notifications disabled")
	}

	// Initialize the alert engine and the per-device monitor
	engine := services.NewAlertEngine(cfg.Alerts)
	var monitorNotifier services.Notifier
	if notifier.Enabled() {
		monitorNotifier = notifier
	}
	monitor := services.NewMonitor(db, wsHub, monitorNotifier, engine, cfg.Intervals)

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go monitor.Run(monitorCtx)

	log.Println("Device monitor started")

	// Initialize Kafka consumer
	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic)
	if err != nil {
		log.Fatalf("Failed to initialize Kafka consumer: %v", err)
	}
	defer consumer.Stop()

	log.Printf("Kafka consumer initialized, topic: %s", cfg.Kafka.Topic)

	consumer.Start()

	// Process readings from Kafka
	go func() {
		for {
			select {
			case reading := <-consumer.ReadingChannel():
				if reading == nil {
					continue
				}
				stored, err := db.InsertReading(reading)
				if err != nil {
					log.Printf("Failed to store reading: %v", err)
					continue
				}

				wsHub.BroadcastReading(stored)

				log.Printf("Reading stored: ID=%d, Device=%s, Level=%.1fcm",
					stored.ID, stored.DeviceID, stored.WaterLevel)

			case err := <-consumer.ErrorChannel():
				log.Printf("Kafka consumer error: %v", err)
			}
		}
	}()

	// Periodic statistics broadcast
	go func() {
		ticker := time.NewTicker(cfg.Intervals.Readings)
		defer ticker.Stop()

		for range ticker.C {
			latest, err := db.GetLatestPerDevice()
			if err != nil {
				log.Printf("Failed to get latest readings: %v", err)
				continue
			}

			wsHub.BroadcastStats(map[string]interface{}{
				"devices":           len(latest),
				"latest_readings":   latest,
				"connected_clients": wsHub.GetClientCount(),
				"timestamp":         time.Now(),
			})
		}
	}()

	// Initialize HTTP handlers
	handler := handlers.New(db, wsHub, monitor, notifier)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(handlers.Metrics())

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	router.Use(func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == "OPTIONS" {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"version":   "1.0.0",
			"websocket": gin.H{
				"connected_clients": wsHub.GetClientCount(),
			},
		})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api")
	{
		// Devices and readings
		api.GET("/devices", handler.GetDevices)
		api.GET("/devices/:id/live", handler.GetLiveMetrics)
		api.GET("/readings", handler.GetReadings)
		api.GET("/readings/latest", handler.GetLatestReadings)

		// Derived metrics
		api.GET("/stats", handler.GetStats)
		api.GET("/averages", handler.GetAverages)
		api.GET("/changerate", handler.GetChangeRate)
		api.GET("/prediction", handler.GetPrediction)
		api.GET("/anomalies", handler.GetAnomalies)

		// Reports
		api.GET("/report", handler.GetReport)
		api.POST("/report/send", handler.SendReport)

		// Node map and pump control
		api.GET("/nodes", handler.GetNodes)
		api.GET("/device/state", handler.GetDeviceState)
		api.PUT("/device/pump", handler.SetPump)

		// Alert configuration
		api.GET("/alerts/config", handler.GetAlertConfig)
		api.PUT("/alerts/config", handler.UpdateAlertConfig)
	}

	// WebSocket endpoint
	router.GET("/ws", handler.WebSocketEndpoint)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("HTTP server listening on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopMonitor()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

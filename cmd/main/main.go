package main

import (
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tourway/internal/api"
	"tourway/internal/config"
	"tourway/internal/redis"
	"tourway/internal/routeapi"
	"tourway/internal/routing"
	"tourway/internal/service/routeplan"
	"tourway/internal/service/session"
	"tourway/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	setupLogging()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	initializeCache(cfg)
	defer closeConnections()

	setupSignalHandler()

	initializeServices(cfg)

	worker.StartAllWorkers()

	runAPIServer(cfg)
}

func setupLogging() {
	// Set up logging to file and terminal
	logFile, err := os.OpenFile("tourway.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	// The file stays open for the entire application lifetime

	// Use MultiWriter to output logs to both terminal and file
	multiWriter := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multiWriter)
}

func initializeCache(cfg config.Config) {
	// Redis only backs the geometry cache; the engine runs without it
	if cfg.RedisUrl == "" {
		log.Println("REDIS_URL not set, running without geometry cache")
		return
	}
	redis.Init(cfg.RedisUrl)
}

func initializeServices(cfg config.Config) {
	apiClient := routeapi.NewClient(cfg.RouteAPIUrl)
	router := routing.NewClient(cfg.RoutingUrl)
	planner := routeplan.NewRecomputer(router)

	session.GetSessionService().Configure(apiClient, planner)
}

func runAPIServer(cfg config.Config) {
	// Initialize Gin router
	r := gin.Default()

	// Configure API routes
	routeConfig := map[string]string{
		"port":       cfg.Port,
		"routeApi":   cfg.RouteAPIUrl,
		"routingUrl": cfg.RoutingUrl,
	}
	api.SetupRouter(r, routeConfig)

	// Start the server
	r.Run(cfg.Port)
}

func closeConnections() {
	session.GetSessionService().CloseAll()

	if err := redis.Close(); err != nil {
		log.Printf("Error closing Redis connection: %v", err)
	}
}

func setupSignalHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("Shutdown signal received, closing sessions...")
		closeConnections()
		os.Exit(0)
	}()
}

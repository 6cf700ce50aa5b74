package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mverner/kidplan/internal/database"
	"github.com/mverner/kidplan/internal/logging"
	"github.com/mverner/kidplan/internal/planning"
	"github.com/mverner/kidplan/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("KIDPLAN_LOG_LEVEL"))

	port := os.Getenv("KIDPLAN_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("KIDPLAN_DB_PATH")
	if dbPath == "" {
		dbPath = "kidplan.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	plannerURL := os.Getenv("KIDPLAN_PLANNER_URL")
	if plannerURL == "" {
		plannerURL = "https://planner.kidplan.app"
	}
	planningClient := planning.NewClient(planning.Config{
		BaseURL: plannerURL,
		APIKey:  os.Getenv("KIDPLAN_PLANNER_KEY"),
	})

	srv, err := server.New(db, planningClient, logger)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 90 * time.Second, // plan generation can take a while
		IdleTimeout:  120 * time.Second,
	}

	// Periodic rate limiter cleanup
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		fmt.Printf("kidplan running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

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

	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/pairchat/pairchat/internal/auth"
	"github.com/pairchat/pairchat/internal/chat"
	"github.com/pairchat/pairchat/internal/data"
	"github.com/pairchat/pairchat/internal/db"
	"github.com/pairchat/pairchat/internal/middleware"
	"github.com/pairchat/pairchat/internal/ws"
)

func main() {
	// Load .env if present; real env always wins.
	_ = godotenv.Load()

	// Read configuration from environment
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		log.Fatal("MONGODB_URI must be set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	jwtKeysEnv := os.Getenv("JWT_KEYS") // optional: format kid:secret,kid2:secret2
	jwtActiveKid := os.Getenv("JWT_ACTIVE_KID")
	if jwtKeysEnv == "" && jwtSecret == "" {
		log.Fatal("either JWT_SECRET or JWT_KEYS must be set")
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	ctx := context.Background()

	// Initialize database
	dbClient, err := db.New(ctx, mongoURI)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(ctx)
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	// Create stores
	convsStore := data.NewConversationsStore(dbClient.ConversationsCollection())
	msgsStore := data.NewMessagesStore(dbClient.MessagesCollection())

	// Initialize auth manager (token valid for 24 hours). If JWT_KEYS supplied
	// we parse keys so token rotation is possible; otherwise fall back to single
	// JWT_SECRET value for backward compatibility.
	var jwtMgr *auth.JWTManager
	if jwtKeysEnv != "" {
		// parse kid:key pairs
		keyMap := map[string]string{}
		pairs := strings.Split(jwtKeysEnv, ",")
		for _, p := range pairs {
			if p == "" {
				continue
			}
			parts := strings.SplitN(p, ":", 2)
			if len(parts) != 2 {
				log.Fatalf("invalid JWT_KEYS entry: %s", p)
			}
			keyMap[parts[0]] = parts[1]
		}
		jwtMgr = auth.NewJWTManagerFromKeys(keyMap, jwtActiveKid, 24*time.Hour)
	} else {
		jwtMgr = auth.NewJWTManager(jwtSecret, 24*time.Hour)
	}

	// RATE_LIMIT_RPM controls how many messages a user may send per minute.
	rateRPM := 30
	if v := os.Getenv("RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rateRPM = n
		}
	}

	// Create limiter store (small burst to absorb quick bursts of typing)
	limiterStore := middleware.NewLimiterStore(rateRPM, 5, 1*time.Minute)
	defer limiterStore.Stop()

	// Create the websocket gateway, service and HTTP server
	gateway := ws.NewGateway(ws.NewMemoryRegistry())
	svc := chat.NewService(convsStore, msgsStore, gateway)
	srv := NewServer(svc)

	corsOrigins := []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}
	corsWrapper := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      corsWrapper.Handler(newRouter(srv, gateway, jwtMgr, limiterStore)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections stay open indefinitely
		IdleTimeout:  time.Minute,
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server exit: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	gateway.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lp24213/mailbridge/internal/api"
	"github.com/lp24213/mailbridge/internal/config"
	"github.com/lp24213/mailbridge/internal/crypto"
	"github.com/lp24213/mailbridge/internal/db"
	"github.com/lp24213/mailbridge/internal/mailbox"
	"github.com/lp24213/mailbridge/internal/webhook"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.CloseConnection(pool)

	log.Printf("Successfully connected to database")

	service := newService(cfg, pool)
	defer service.Close()

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: NewServer(service),
	}

	go func() {
		log.Printf("Mailbridge server starting on %s (environment: %s)", server.Addr, cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func newService(cfg *config.Config, pool *pgxpool.Pool) *mailbox.Service {
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}

	dispatcher := webhook.NewDispatcher(pool, cfg.WebhookURL, cfg.WebhookSecret)
	return mailbox.NewService(pool, encryptor, dispatcher, cfg)
}

// NewServer creates the HTTP handler for the Mailbridge API.
func NewServer(service *mailbox.Service) http.Handler {
	accountsHandler := api.NewAccountsHandler(service)
	messagesHandler := api.NewMessagesHandler(service)
	sendHandler := api.NewSendHandler(service)
	eventsHandler := api.NewEventsHandler(service)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	mux.Handle("/api/v1/accounts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			accountsHandler.ListAccounts(w, r)
		case http.MethodPost:
			accountsHandler.CreateAccount(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.Handle("/api/v1/events", http.HandlerFunc(eventsHandler.ListEvents))

	// Handle /api/v1/accounts/{account_id}/... patterns
	mux.Handle("/api/v1/accounts/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/accounts/")
		segments := strings.Split(strings.Trim(path, "/"), "/")
		if len(segments) == 0 || segments[0] == "" {
			http.Error(w, "account_id is required", http.StatusBadRequest)
			return
		}
		accountID := segments[0]

		switch {
		case len(segments) == 1 && r.Method == http.MethodDelete:
			accountsHandler.DeleteAccount(w, r, accountID)
		case len(segments) == 2 && segments[1] == "messages" && r.Method == http.MethodGet:
			messagesHandler.ListMessages(w, r, accountID)
		case len(segments) == 2 && segments[1] == "send" && r.Method == http.MethodPost:
			sendHandler.Send(w, r, accountID)
		case len(segments) == 3 && segments[1] == "messages":
			uid, ok := api.ParseUID(w, segments[2])
			if !ok {
				return
			}
			switch r.Method {
			case http.MethodGet:
				messagesHandler.GetMessage(w, r, accountID, uid)
			case http.MethodDelete:
				messagesHandler.DeleteMessage(w, r, accountID, uid)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		case len(segments) == 4 && segments[1] == "messages" && segments[3] == "read" && r.Method == http.MethodPost:
			uid, ok := api.ParseUID(w, segments[2])
			if !ok {
				return
			}
			messagesHandler.MarkRead(w, r, accountID, uid)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}))

	return mux
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Mailbridge API is running")
}

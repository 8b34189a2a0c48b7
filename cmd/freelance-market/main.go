package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"freelance_market/internal/http-server/handlers/api/bids"
	"freelance_market/internal/http-server/handlers/api/ping"
	"freelance_market/internal/services"
	"freelance_market/internal/storage/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func main() {

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := godotenv.Load()
	if err != nil {
		log.Error("Failed to load .env", slog.Attr{Key: "error", Value: slog.StringValue(err.Error())})
	}

	connStr := os.Getenv("POSTGRES_CONN")
	storage, err := postgres.New(connStr)
	if err != nil {
		log.Error("Failed to connect to postgresql", slog.Attr{Key: "error", Value: slog.StringValue(err.Error())})
		os.Exit(1)
	}

	bidService := services.NewBidService(storage)

	router := chi.NewRouter()

	router.Route("/api", func(r chi.Router) {
		r.Get("/ping", ping.New(log))
		r.Route("/bids", func(r chi.Router) {
			r.Post("/new", bids.NewPostBid(log, bidService))
			r.Get("/my", bids.NewGetMyBids(log, bidService))
			r.Get("/{projectId}/list", bids.NewGetProjectBids(log, bidService))
			r.Get("/{bidId}/status", bids.NewGetBidStatus(log, bidService))
			r.Patch("/{bidId}/edit", bids.NewPatchBid(log, bidService))
			r.Put("/{bidId}/accept", bids.NewAcceptBid(log, bidService))
			r.Put("/{bidId}/reject", bids.NewRejectBid(log, bidService))
			r.Put("/{bidId}/withdraw", bids.NewWithdrawBid(log, bidService))
		})
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	addr := os.Getenv("SERVER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error("failed to start the server")
		}
	}()

	log.Info("starting server", slog.String("addr", addr))
	<-done
	log.Info("server stopped")
}

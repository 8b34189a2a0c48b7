package ping

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// New returns the liveness handler.
func New(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ping.New"

		log := log.With(slog.String("op", op))
		log.Info("liveness check")

		render.PlainText(w, r, "ok")
	}
}

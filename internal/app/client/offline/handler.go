package offline

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"
)

const controlPrefix = "/__worker"

type message struct {
	Type string `json:"type"`
}

type status struct {
	Phase Phase  `json:"phase"`
	Cache string `json:"cache"`
}

// Handler - прокси worker'а и служебные маршруты управления
func Handler(w *Worker) http.Handler {
	r := chi.NewRouter()

	r.Route(controlPrefix, func(r chi.Router) {
		r.Post("/message", w.handleMessage)
		r.Get("/status", w.handleStatus)
		r.Handle("/metrics", promhttp.Handler())
	})
	r.Handle("/*", w)

	return r
}

func (w *Worker) handleMessage(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1024))
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}

	msg := strings.TrimSpace(string(body))
	if strings.HasPrefix(msg, "{") {
		var m message
		if err := json.Unmarshal(body, &m); err != nil {
			http.Error(rw, "invalid message", http.StatusBadRequest)
			return
		}
		msg = m.Type
	}

	if err := w.HandleMessage(r.Context(), msg); err != nil {
		w.log.Warn("worker message failed", slog.String("message", msg), slog.String("error", err.Error()))
		code := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownMessage) {
			code = http.StatusBadRequest
		}
		http.Error(rw, err.Error(), code)
		return
	}
	w.handleStatus(rw, r)
}

func (w *Worker) handleStatus(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(status{Phase: w.Phase(), Cache: w.name})
}

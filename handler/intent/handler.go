// Package intent はUIからの行動要求をHTTPで受け付けます。
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"umbra/game"
	"umbra/internal/turnloop"
	"umbra/service"
	"umbra/storage"
)

//go:generate go tool mockgen -destination=./mocks/service_mock.go -package=mocks . Service

// Service は *service.GameService が満たす操作です。
type Service interface {
	Place(ctx context.Context, in service.Intent) (service.View, error)
	Move(ctx context.Context, in service.Intent) (service.View, error)
	Illuminate(ctx context.Context, in service.Intent) (service.View, error)
	Signal(ctx context.Context, in service.Intent) (service.View, error)
	UseToken(ctx context.Context, in service.Intent) (service.View, error)
	EndTurn(ctx context.Context, in service.Intent) (service.View, error)
	State(ctx context.Context) (service.View, error)
	Sessions(ctx context.Context) ([]storage.Summary, error)
}

var _ Service = (*service.GameService)(nil)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Routes はmuxに全エンドポイントを登録します。
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /intents/place", h.intent(h.svc.Place))
	mux.HandleFunc("POST /intents/move", h.intent(h.svc.Move))
	mux.HandleFunc("POST /intents/illuminate", h.intent(h.svc.Illuminate))
	mux.HandleFunc("POST /intents/signal", h.intent(h.svc.Signal))
	mux.HandleFunc("POST /intents/token", h.intent(h.svc.UseToken))
	mux.HandleFunc("POST /intents/end-turn", h.intent(h.svc.EndTurn))
	mux.HandleFunc("GET /state", h.HandleState)
	mux.HandleFunc("GET /sessions", h.HandleSessions)
}

func (h *Handler) intent(apply func(context.Context, service.Intent) (service.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload service.Intent
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&payload); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		view, err := apply(r.Context(), payload)
		if err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.State(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Sessions(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	if list == nil {
		list = []storage.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// writeServiceError はエラーの種類に応じたステータスを返します。
// 拒否理由はUIがそのまま表示できるようreasonに載せます。
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var rej *game.RejectError
	switch {
	case errors.As(err, &rej):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  err.Error(),
			"reason": string(rej.Reason),
		})
	case errors.Is(err, service.ErrInvalidPayload):
		httpError(w, http.StatusBadRequest, err)
	case errors.Is(err, game.ErrGameNotPlayable), errors.Is(err, game.ErrIllegalTransition):
		httpError(w, http.StatusConflict, err)
	case errors.Is(err, turnloop.ErrStopped), errors.Is(err, turnloop.ErrNotStarted),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpError(w, http.StatusServiceUnavailable, err)
	default:
		slog.ErrorContext(ctx, "intent failed", "err", err)
		httpError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

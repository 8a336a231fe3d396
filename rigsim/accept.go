package rigsim

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	wsadapter "umbra/rig/adapter/websocket"
)

// AcceptHandler はブリッジからのwebsocket接続を受け付け、フレームを処理して応答します。
type AcceptHandler struct {
	sim *Sim
}

func NewAcceptHandler(sim *Sim) *AcceptHandler {
	return &AcceptHandler{sim: sim}
}

func (h *AcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // 開発用: Origin チェックをスキップ
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to accept", "err", err)
		return
	}
	conn.SetReadLimit(1 << 20)
	tr := wsadapter.NewTransportFrom(conn)
	defer tr.Close(int32(websocket.StatusNormalClosure), "bye")

	h.sim.connections.Add(1)
	defer h.sim.connections.Add(-1)
	slog.InfoContext(ctx, "rigsim: bridge connected", "remote", r.RemoteAddr)

	for {
		data, err := tr.Read(ctx)
		if err != nil {
			slog.InfoContext(ctx, "rigsim: bridge disconnected", "err", err)
			return
		}
		resps, err := h.sim.Apply(data)
		if err != nil {
			slog.WarnContext(ctx, "rigsim: undecodable frame", "err", err)
			continue
		}
		for _, resp := range resps {
			b, err := json.Marshal(resp)
			if err != nil {
				slog.ErrorContext(ctx, "rigsim: encode response", "err", err)
				continue
			}
			if err := tr.Write(ctx, b); err != nil {
				slog.WarnContext(ctx, "rigsim: write failed", "err", err)
				return
			}
		}
	}
}

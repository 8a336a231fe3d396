package intent

import "net/http"

// NewHealthHandler は status の返す値を添えて稼働中であることを返します。
func NewHealthHandler(status func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if status != nil {
			body["detail"] = status()
		}
		writeJSON(w, http.StatusOK, body)
	}
}

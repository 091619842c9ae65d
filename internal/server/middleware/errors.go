package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/iudanet/trackmail/pkg/api"
)

// writeError отправляет JSON ответ с ошибкой в том же формате, что и handlers
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

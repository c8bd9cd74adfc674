package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK wraps data in the success envelope and writes it with status 200
func OK[T any](w http.ResponseWriter, data T) {
	JSON(w, http.StatusOK, Data[T]{Data: data})
}

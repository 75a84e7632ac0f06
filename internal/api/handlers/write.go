package handlers

import (
	"encoding/json"
	"net/http"
)

// writeStatus writes a bare JSON body; health probes skip the response envelope
func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

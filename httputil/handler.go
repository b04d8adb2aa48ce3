// Copyright (c) 2025 BVK Chaitanya

package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// PostJSONHandler adapts a typed request/response function into an http
// handler. Requests must be POSTs with json bodies; handler errors are
// reported with status 500 and the error string as the body.
func PostJSONHandler[REQ, RESP any](fn func(context.Context, *REQ) (*RESP, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method must be POST", http.StatusMethodNotAllowed)
			return
		}
		req := new(REQ)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := fn(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("content-type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("could not encode response (ignored)", "err", err)
		}
	})
}

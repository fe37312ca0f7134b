package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/kindredapp/kindred/internal/config"
)

// NewRouter wires all API routes onto a mux router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/swipes", h.HandleSwipe).Methods("POST")

	users := api.PathPrefix("/users/{id}").Subrouter()
	users.HandleFunc("/candidates", h.HandleCandidates).Methods("GET")
	users.HandleFunc("/daily-pick", h.HandleDailyPick).Methods("GET")
	users.HandleFunc("/daily-pick/viewed", h.HandleDailyPickViewed).Methods("POST")
	users.HandleFunc("/daily-status", h.HandleDailyStatus).Methods("GET")
	users.HandleFunc("/liked-you", h.HandleLikedYou).Methods("GET")
	users.HandleFunc("/undo", h.HandleUndo).Methods("POST")
	users.HandleFunc("/unmatch", h.HandleUnmatch).Methods("POST")

	return r
}

// StartHTTPServer boots the API server with CORS middleware.
func StartHTTPServer(cfg *config.Config, h *Handler) error {
	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(NewRouter(h))

	return http.ListenAndServe(addr, corsHandler)
}

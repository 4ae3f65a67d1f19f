package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter builds the route table. Every subtree runs the pipeline in
// order: rate limiter, authentication gate, then any authorization gate.
func (h *Handlers) NewRouter() http.Handler {
	r := mux.NewRouter()
	r.Use(h.recoverer)

	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	authRoutes := r.PathPrefix("/api/auth").Subrouter()
	authRoutes.Use(h.rateLimit(h.authLimiter))
	authRoutes.HandleFunc("/register", h.Register).Methods("POST")
	authRoutes.HandleFunc("/login", h.Login).Methods("POST")
	authRoutes.HandleFunc("/logout", h.Logout).Methods("GET")

	tx := r.PathPrefix("/api/transactions").Subrouter()
	tx.Use(h.rateLimit(h.transactionsLimiter), h.authenticate)
	tx.HandleFunc("", h.ListTransactions).Methods("GET")
	tx.HandleFunc("", h.requireWrite(h.CreateTransaction)).Methods("POST")
	tx.HandleFunc("/{id}", h.GetTransaction).Methods("GET")
	tx.HandleFunc("/{id}", h.requireWrite(h.UpdateTransaction)).Methods("PUT")
	tx.HandleFunc("/{id}", h.requireWrite(h.DeleteTransaction)).Methods("DELETE")

	an := r.PathPrefix("/api/analytics").Subrouter()
	an.Use(h.rateLimit(h.analyticsLimiter), h.authenticate)
	an.HandleFunc("", h.Overview).Methods("GET")
	an.HandleFunc("/summary", h.Summary).Methods("GET")
	an.HandleFunc("/categories", h.Categories).Methods("GET")
	an.HandleFunc("/trends", h.Trends).Methods("GET")
	an.HandleFunc("/recent", h.Recent).Methods("GET")

	users := r.PathPrefix("/api/users").Subrouter()
	users.Use(h.rateLimit(h.generalLimiter), h.authenticate)
	// Fixed paths before the {id} wildcard.
	users.HandleFunc("/profile", h.Profile).Methods("GET")
	users.HandleFunc("/profile", h.UpdateProfile).Methods("PUT")
	users.HandleFunc("/password", h.ChangePassword).Methods("PUT")
	users.HandleFunc("/account", h.DeleteAccount).Methods("DELETE")
	users.HandleFunc("", h.requireAdmin(h.ListUsers)).Methods("GET")
	users.HandleFunc("/{id}", h.requireAdmin(h.GetUser)).Methods("GET")
	users.HandleFunc("/{id}/role", h.requireAdmin(h.UpdateRole)).Methods("PUT")
	users.HandleFunc("/{id}", h.requireAdmin(h.DeleteUser)).Methods("DELETE")

	return r
}

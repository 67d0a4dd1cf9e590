// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for the
// DemandFlow API. It organizes routes into public, authenticated and
// admin groups with appropriate middleware stacks.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"demandflow/internal/auth"
	"demandflow/internal/handlers"
	"demandflow/internal/metrics"
	"demandflow/internal/middleware"
)

// New creates and returns the configured Chi router with all middleware
// and route groups wired up. corsOrigin may be empty to disable CORS.
func New(api *handlers.API, tokens *auth.Tokens, corsOrigin string) chi.Router {
	r := chi.NewRouter()

	// Global middleware — applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	if corsOrigin != "" {
		r.Use(middleware.CORS(corsOrigin))
	}
	r.Use(metrics.Instrument)
	r.Use(middleware.Authenticate(tokens))

	// Health check and Prometheus scrape — no auth.
	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Brute-force protection for credential and token-guessing surfaces.
	loginLimiter := middleware.NewRateLimiter(10, time.Minute)
	approvalLimiter := middleware.NewRateLimiter(60, time.Minute)

	r.Route("/api", func(r chi.Router) {
		// Auth — accessible without a token.
		r.Group(func(r chi.Router) {
			r.Use(loginLimiter.Middleware)
			r.Post("/auth/login", api.Login)
			r.Post("/auth/refresh", api.RefreshToken)
		})

		// Authenticated API.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Post("/auth/logout", api.Logout)
			r.Get("/auth/me", api.Me)
			r.Post("/auth/2fa/setup", api.TwoFASetup)
			r.Post("/auth/2fa/verify", api.TwoFAVerify)

			// Clients
			r.Route("/clients", func(r chi.Router) {
				r.Get("/", api.ClientsList)
				r.Post("/", api.ClientCreate)
				r.Get("/{clientID}", api.ClientGet)
				r.Put("/{clientID}", api.ClientUpdate)
				r.Delete("/{clientID}", api.ClientDelete)
				r.Get("/{clientID}/history", api.ClientContentHistory)
			})

			// Demands (Kanban board)
			r.Route("/demands", func(r chi.Router) {
				r.Get("/", api.DemandsList)
				r.Post("/", api.DemandCreate)
				r.Get("/{demandID}", api.DemandGet)
				r.Put("/{demandID}", api.DemandUpdate)
				r.Delete("/{demandID}", api.DemandDelete)
				r.Post("/{demandID}/move", api.DemandMove)
				r.Post("/{demandID}/approve", api.DemandApproveInternal)
				r.Post("/{demandID}/request-adjustment", api.DemandRequestAdjustmentInternal)
				r.Post("/{demandID}/reset-approvals", api.DemandResetApprovals)
				r.Post("/{demandID}/comments", api.DemandCommentCreate)
				r.Put("/{demandID}/media", api.DemandSetMedia)
			})

			// Billing
			r.Route("/contracts", func(r chi.Router) {
				r.Get("/", api.ContractsList)
				r.Post("/", api.ContractCreate)
				r.Get("/{contractID}", api.ContractGet)
				r.Put("/{contractID}", api.ContractUpdate)
				r.Delete("/{contractID}", api.ContractDelete)
			})
			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", api.TransactionsList)
				r.Post("/", api.TransactionCreate)
				r.Put("/{transactionID}", api.TransactionUpdate)
				r.Post("/{transactionID}/pay", api.TransactionMarkPaid)
				r.Delete("/{transactionID}", api.TransactionDelete)
			})
			r.Get("/finance/summary", api.FinanceSummary)

			// Chat
			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", api.ConversationsList)
				r.Post("/", api.ConversationCreate)
				r.Get("/{conversationID}", api.ConversationMessages)
				r.Put("/{conversationID}", api.ConversationRename)
				r.Delete("/{conversationID}", api.ConversationDelete)
				r.Post("/{conversationID}/messages", api.ChatSend)
			})
			r.Get("/chat/providers", api.ChatProviders)

			// Studio
			r.Route("/studio", func(r chi.Router) {
				r.Get("/providers", api.StudioProviders)
				r.Post("/generate/image", api.StudioGenerateImage)
				r.Post("/generate/speech", api.StudioGenerateSpeech)
				r.Post("/generate/text", api.StudioGenerateText)
				r.Get("/history", api.StudioHistory)
				r.Get("/stats", api.StudioStats)
				r.Post("/{generationID}/favorite", api.StudioToggleFavorite)
				r.Delete("/{generationID}", api.StudioDelete)
				r.Post("/delete-bulk", api.StudioDeleteBulk)
			})

			// Media library
			r.Route("/media", func(r chi.Router) {
				r.Get("/", api.MediaList)
				r.Post("/", api.MediaUpload)
				r.Delete("/{mediaID}", api.MediaDelete)
			})

			// Search
			r.Get("/search", api.Search)

			// Admin only.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Route("/team", func(r chi.Router) {
					r.Get("/", api.TeamList)
					r.Post("/", api.TeamCreate)
					r.Put("/{userID}", api.TeamUpdate)
					r.Post("/{userID}/reset-2fa", api.TeamResetTwoFA)
					r.Delete("/{userID}", api.TeamDelete)
				})
				r.Put("/chat/provider", api.ChatSetProvider)
				r.Get("/usage", api.UsageList)
				r.Get("/usage/stats", api.UsageStats)
			})
		})
	})

	// Public approval pages — token in the URL, no login.
	r.Route("/approval/{token}", func(r chi.Router) {
		r.Use(approvalLimiter.Middleware)
		r.Get("/", api.ApprovalPage)
		r.Get("/demands/{demandID}", api.ApprovalDemandGet)
		r.Post("/demands/{demandID}/approve", api.ApprovalApprove)
		r.Post("/demands/{demandID}/request-adjustment", api.ApprovalRequestAdjustment)
		r.Post("/approve-all", api.ApprovalApproveAll)
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

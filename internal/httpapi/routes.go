// Package httpapi is the local server's REST surface.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quoridor-client/internal/authtoken"
	"github.com/DoyleJ11/quoridor-client/internal/hub"
	"github.com/DoyleJ11/quoridor-client/internal/logging"
	"github.com/DoyleJ11/quoridor-client/internal/store"
	"github.com/DoyleJ11/quoridor-client/internal/ws"
)

type Deps struct {
	Hub    *hub.Hub
	Users  store.UserStore
	Tokens *authtoken.Issuer
	Logger *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := logging.OrNop(d.Logger).Named("http")
	a := &API{hub: d.Hub, users: d.Users, tokens: d.Tokens, log: log}
	sockets := ws.New(d.Hub, log)

	r := chi.NewRouter()

	// Public routes
	r.Get("/healthz", Healthz)
	r.Post("/auth/login", a.Login)
	r.Post("/auth/register", a.Register)
	r.Post("/auth/guest_login", a.GuestLogin)
	r.Get("/auth/logout", a.Logout)
	r.Get("/leaderboard", a.Leaderboard)
	r.Get("/quoridor/que", a.Queue)

	// Signed-in routes
	r.Group(func(r chi.Router) {
		r.Use(RequireToken(d.Tokens))
		r.Get("/auth/context/", a.Context)
		r.Get("/auth/stats", a.Stats)
		r.Get("/quoridor/solo", a.Solo)
		r.Get("/quoridor/que/join/{id}", a.Join)
		r.Get("/quoridor/que/host", sockets.Host)
		r.Get("/quoridor/events/{"+ws.MatchParam+"}", sockets.Events)
		r.Get("/chat/{"+ws.MatchParam+"}", sockets.Chat)
	})
	return r
}

// RequireToken rejects requests without a valid auth_token cookie and stores
// the token's claims on the request context.
func RequireToken(tokens *authtoken.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(authtoken.CookieName)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusForbidden)
				return
			}
			claims, err := tokens.Parse(c.Value)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(authtoken.WithClaims(r.Context(), claims)))
		})
	}
}

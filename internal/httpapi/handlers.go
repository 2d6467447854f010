package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/quoridor-client/internal/authtoken"
	"github.com/DoyleJ11/quoridor-client/internal/hub"
	"github.com/DoyleJ11/quoridor-client/internal/lobby"
	"github.com/DoyleJ11/quoridor-client/internal/store"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

var validate = validator.New()

type API struct {
	hub    *hub.Hub
	users  store.UserStore
	tokens *authtoken.Issuer
	log    *zap.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// rejected answers 200 with the {"UnsupportedDataType": msg} body.
func rejected(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, types.UnsupportedDataType{UnsupportedDataType: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		rejected(w, "malformed request")
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			rejected(w, fmt.Sprintf("invalid %s", strings.ToLower(verrs[0].Field())))
		} else {
			rejected(w, err.Error())
		}
		return false
	}
	return true
}

func (a *API) activeMatch(ctx context.Context, player string) *string {
	reply := make(chan string, 1)
	select {
	case a.hub.Inbox() <- hub.ActiveMatch{Player: player, Reply: reply}:
	case <-ctx.Done():
		return nil
	}
	select {
	case id := <-reply:
		if id == "" {
			return nil
		}
		return &id
	case <-ctx.Done():
		return nil
	}
}

func (a *API) userContext(ctx context.Context, u store.User, token string) types.UserContext {
	return types.UserContext{
		Email:       u.Email,
		Username:    u.Username,
		AuthToken:   token,
		ActiveMatch: a.activeMatch(ctx, u.Email),
	}
}

// signIn issues a token, sets the cookie and writes the user context.
func (a *API) signIn(w http.ResponseWriter, r *http.Request, u store.User) {
	tok, err := a.tokens.Issue(u.Email, u.Username, u.Guest)
	if err != nil {
		a.log.Error("issue token", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authtoken.CookieName,
		Value:    tok,
		Path:     "/",
		Expires:  time.Now().Add(authtoken.TTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, a.userContext(r.Context(), u, tok))
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var in types.Credentials
	if !decode(w, r, &in) {
		return
	}
	u, err := store.Authenticate(r.Context(), a.users, in.Email, in.Password)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
		return
	case errors.Is(err, store.ErrBadPassword):
		http.Error(w, "incorrect credentials", http.StatusForbidden)
		return
	case err != nil:
		a.log.Error("login", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	a.signIn(w, r, u)
}

func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var in types.Registration
	if !decode(w, r, &in) {
		return
	}
	hash, err := store.HashPassword(in.Password)
	if err != nil {
		rejected(w, "invalid password")
		return
	}
	u := store.User{Email: in.Email, Username: in.Username, PasswordHash: hash}
	a.create(w, r, u)
}

func (a *API) GuestLogin(w http.ResponseWriter, r *http.Request) {
	var in types.GuestLogin
	if !decode(w, r, &in) {
		return
	}
	u := store.User{Email: "guest-" + uuid.NewString(), Username: in.Username, Guest: true}
	a.create(w, r, u)
}

func (a *API) create(w http.ResponseWriter, r *http.Request, u store.User) {
	err := a.users.Create(r.Context(), u)
	switch {
	case errors.Is(err, store.ErrUsernameTaken), errors.Is(err, store.ErrEmailTaken):
		writeJSON(w, http.StatusOK, types.AlreadyTaken)
		return
	case err != nil:
		a.log.Error("create user", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	a.log.Info("user created", zap.String("user", u.Username), zap.Bool("guest", u.Guest))
	a.signIn(w, r, u)
}

func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   authtoken.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusOK)
}

// currentUser loads the account behind the request's token.
func (a *API) currentUser(w http.ResponseWriter, r *http.Request) (store.User, bool) {
	claims, _ := authtoken.FromContext(r.Context())
	u, err := a.users.ByEmail(r.Context(), claims.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
		return u, false
	case err != nil:
		a.log.Error("load user", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return u, false
	}
	return u, true
}

func (a *API) Context(w http.ResponseWriter, r *http.Request) {
	u, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	tok := ""
	if c, err := r.Cookie(authtoken.CookieName); err == nil {
		tok = c.Value
	}
	writeJSON(w, http.StatusOK, a.userContext(r.Context(), u, tok))
}

func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	u, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u.Stats())
}

func (a *API) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := a.users.Leaderboard(r.Context(), 0)
	if err != nil {
		a.log.Error("leaderboard", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// Solo starts a match against the CPU, or returns the caller's running match.
func (a *API) Solo(w http.ResponseWriter, r *http.Request) {
	u, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	reply := make(chan *lobby.Lobby, 1)
	a.hub.Inbox() <- hub.CreateMatch{Up: u.Email, Down: lobby.CPU, Reply: reply}
	lb := <-reply
	id := lb.ID()
	writeJSON(w, http.StatusOK, types.UserContext{Email: u.Email, Username: u.Username, ActiveMatch: &id})
}

// Queue lists hosts waiting for an opponent.
func (a *API) Queue(w http.ResponseWriter, r *http.Request) {
	reply := make(chan []string, 1)
	a.hub.Inbox() <- hub.ListHosts{Reply: reply}
	writeJSON(w, http.StatusOK, <-reply)
}

func (a *API) Join(w http.ResponseWriter, r *http.Request) {
	u, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	reply := make(chan hub.JoinResult, 1)
	a.hub.Inbox() <- hub.JoinHost{ID: chi.URLParam(r, "id"), Player: u.Email, Reply: reply}
	res := <-reply
	switch {
	case errors.Is(res.Err, hub.ErrNoHost):
		http.Error(w, res.Err.Error(), http.StatusNotFound)
		return
	case res.Err != nil:
		http.Error(w, res.Err.Error(), http.StatusConflict)
		return
	}
	id := res.Lobby.ID()
	writeJSON(w, http.StatusOK, types.UserContext{Email: u.Email, Username: u.Username, ActiveMatch: &id})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/quoridor-client/internal/apiclient"
	"github.com/DoyleJ11/quoridor-client/internal/auth"
	"github.com/DoyleJ11/quoridor-client/internal/authtoken"
	"github.com/DoyleJ11/quoridor-client/internal/engine"
	"github.com/DoyleJ11/quoridor-client/internal/httpapi"
	"github.com/DoyleJ11/quoridor-client/internal/hub"
	"github.com/DoyleJ11/quoridor-client/internal/lobby"
	"github.com/DoyleJ11/quoridor-client/internal/matchmaking"
	"github.com/DoyleJ11/quoridor-client/internal/session"
	"github.com/DoyleJ11/quoridor-client/internal/store"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

type recorder struct {
	boards chan engine.State
	chat   chan types.ChatMessage
}

func (r *recorder) BoardUpdated(_ string, s engine.State) {
	select {
	case r.boards <- s:
	default:
	}
}

func (r *recorder) ChatReceived(_ string, m types.ChatMessage) {
	select {
	case r.chat <- m:
	default:
	}
}

func (r *recorder) Notice(string) {}

type player struct {
	*Controller
	rec       *recorder
	tokenFile string
}

func startServer(t *testing.T) (string, store.UserStore, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	users := store.NewMemory()
	h := hub.NewHub(ctx, hub.Config{Store: users})
	srv := httptest.NewServer(httpapi.SetupRoutes(httpapi.Deps{
		Hub:    h,
		Users:  users,
		Tokens: authtoken.NewIssuer("e2e-secret"),
	}))
	t.Cleanup(srv.Close)
	return srv.URL, users, h
}

// lobbyRunning asks the hub whether match id still has a lobby. A hub that
// does not answer counts as running.
func lobbyRunning(h *hub.Hub, id string) bool {
	reply := make(chan *lobby.Lobby, 1)
	select {
	case h.Inbox() <- hub.GetMatch{ID: id, Reply: reply}:
	case <-time.After(time.Second):
		return true
	}
	select {
	case lb := <-reply:
		return lb != nil
	case <-time.After(time.Second):
		return true
	}
}

func newPlayer(t *testing.T, baseURL, tokenFile string) *player {
	t.Helper()
	tokens := auth.NewTokenStore(tokenFile)
	api, err := apiclient.New(baseURL, tokens.Token)
	require.NoError(t, err)

	rec := &recorder{boards: make(chan engine.State, 64), chat: make(chan types.ChatMessage, 16)}
	sess := session.New(context.Background(), session.Config{
		BaseURL:  baseURL,
		Header:   api.Header,
		Listener: rec,
	})
	t.Cleanup(sess.Close)

	ctl := New(auth.New(api, tokens), matchmaking.New(api), sess, nil)
	return &player{Controller: ctl, rec: rec, tokenFile: tokenFile}
}

// waitBoard drains board updates until ok accepts one.
func waitBoard(t *testing.T, p *player, ok func(engine.State) bool) engine.State {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-p.rec.boards:
			if ok(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for board")
			return engine.State{}
		}
	}
}

func TestController_HostJoinPlayChatConcede(t *testing.T) {
	ctx := context.Background()
	baseURL, users, h := startServer(t)
	dir := t.TempDir()

	alice := newPlayer(t, baseURL, filepath.Join(dir, "alice"))
	bob := newPlayer(t, baseURL, filepath.Join(dir, "bob"))

	ua, err := alice.RegisterUser(ctx, "alice", "hunter2", "a@x.io")
	require.NoError(t, err)
	ub, err := bob.RegisterGuest(ctx, "bob")
	require.NoError(t, err)

	_, err = bob.RegisterGuest(ctx, "alice")
	assert.ErrorIs(t, err, apiclient.ErrAlreadyTaken)
	current, ok := bob.User()
	require.True(t, ok)
	assert.Equal(t, ub.Email, current.Email)

	hosting, err := alice.Host(ctx)
	require.NoError(t, err)
	_, err = alice.Host(ctx)
	assert.ErrorIs(t, err, ErrAlreadyHosting)

	var open []string
	require.Eventually(t, func() bool {
		open, err = bob.OpenMatches(ctx)
		return err == nil && len(open) == 1
	}, 3*time.Second, 20*time.Millisecond)

	joined, err := bob.Join(ctx, open[0])
	require.NoError(t, err)
	hosted, err := alice.AwaitHost(ctx, hosting)
	require.NoError(t, err)
	assert.Equal(t, joined, hosted)

	isOpening := func(s engine.State) bool { return s.FirstPlayer == ua.Email && s.Turn == 0 }
	waitBoard(t, alice, isOpening)
	waitBoard(t, bob, isOpening)

	require.NoError(t, alice.Submit(ctx, engine.Move(1, 4)))
	moved := func(s engine.State) bool { return s.FirstPosition == engine.Position{Row: 1, Col: 4} }
	s := waitBoard(t, bob, moved)
	assert.Equal(t, ub.Email, s.Current)
	waitBoard(t, alice, moved)

	assert.ErrorIs(t, alice.Submit(ctx, engine.Move(2, 4)), engine.ErrWrongTurn)
	assert.ErrorIs(t, bob.Submit(ctx, engine.Move(5, 4)), engine.ErrIllegalMove)

	// chat channels may still be dialing
	require.Eventually(t, func() bool {
		if alice.Say(ctx, "gl hf") != nil {
			return false
		}
		select {
		case m := <-bob.rec.chat:
			return m.User == "alice" && m.Message == "gl hf"
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Concede(ctx))
	final := waitBoard(t, alice, func(s engine.State) bool { return s.Finished() })
	assert.Equal(t, ua.Email, final.Winner)

	require.Eventually(t, func() bool {
		u, err := users.ByEmail(ctx, ua.Email)
		return err == nil && u.Wins == 1
	}, 3*time.Second, 20*time.Millisecond)
	st, err := alice.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.UserStats{Username: "alice", Wins: 1}, st)

	require.NoError(t, bob.LeaveMatch(ctx))

	// alice still watches the finished match and holds its chat
	require.Eventually(t, func() bool {
		msgs, err := alice.Session().ChatHistory(ctx, hosted)
		return err == nil && len(msgs) > 0
	}, 3*time.Second, 20*time.Millisecond)
	assert.True(t, lobbyRunning(h, hosted))

	require.NoError(t, alice.Logout(ctx))
	_, ok = alice.User()
	assert.False(t, ok)

	// logging out tears the match session down on both ends
	active, err := alice.Session().ActiveGame(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
	_, loaded, err := alice.Session().Board(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)
	msgs, err := alice.Session().ChatHistory(ctx, hosted)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.Eventually(t, func() bool { return !lobbyRunning(h, hosted) }, 3*time.Second, 20*time.Millisecond)
}

func TestController_RestoreRejoinsActiveMatch(t *testing.T) {
	ctx := context.Background()
	baseURL, _, _ := startServer(t)
	tokenFile := filepath.Join(t.TempDir(), "token")

	first := newPlayer(t, baseURL, tokenFile)
	_, err := first.RegisterGuest(ctx, "carol")
	require.NoError(t, err)
	id, err := first.Solo(ctx)
	require.NoError(t, err)
	waitBoard(t, first, func(s engine.State) bool { return s.FirstPlayer != "" })
	require.NoError(t, first.LeaveMatch(ctx))

	// a fresh process with the same token file picks the match back up
	second := newPlayer(t, baseURL, tokenFile)
	uc, err := second.Restore(ctx)
	require.NoError(t, err)
	active, ok := uc.Match()
	require.True(t, ok)
	assert.Equal(t, id, active)

	got, err := second.Session().ActiveGame(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	waitBoard(t, second, func(s engine.State) bool { return s.FirstPlayer == uc.Identity() })

	// the CPU answers straight away
	require.NoError(t, second.Submit(ctx, engine.Move(1, 4)))
	s := waitBoard(t, second, func(s engine.State) bool { return s.Turn == 2 })
	assert.Equal(t, uc.Identity(), s.Current)
}

func TestController_RestoreWithoutToken(t *testing.T) {
	baseURL, _, _ := startServer(t)
	p := newPlayer(t, baseURL, filepath.Join(t.TempDir(), "token"))
	_, err := p.Restore(context.Background())
	assert.ErrorIs(t, err, auth.ErrNoToken)
}

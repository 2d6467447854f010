// Command client plays Quoridor against a server from the terminal.
//
//	client [-guest name | -email e -password p [-register name]] solo|host|join <id>|resume|list|leaderboard|stats
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/quoridor-client/internal/apiclient"
	"github.com/DoyleJ11/quoridor-client/internal/auth"
	"github.com/DoyleJ11/quoridor-client/internal/chatstore"
	"github.com/DoyleJ11/quoridor-client/internal/client"
	"github.com/DoyleJ11/quoridor-client/internal/config"
	"github.com/DoyleJ11/quoridor-client/internal/engine"
	"github.com/DoyleJ11/quoridor-client/internal/logging"
	"github.com/DoyleJ11/quoridor-client/internal/matchmaking"
	"github.com/DoyleJ11/quoridor-client/internal/render"
	"github.com/DoyleJ11/quoridor-client/internal/session"
	"github.com/DoyleJ11/quoridor-client/pkg/types"
)

type options struct {
	guest    string
	email    string
	password string
	register string
}

func main() {
	var opts options
	flag.StringVar(&opts.guest, "guest", "", "sign in as a guest with this username")
	flag.StringVar(&opts.email, "email", "", "account email")
	flag.StringVar(&opts.password, "password", "", "account password")
	flag.StringVar(&opts.register, "register", "", "create an account with this username first")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, flag.Args(), log); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, apiclient.UserMessage(err))
		os.Exit(1)
	}
}

// terminal prints session events. It is the session Listener.
type terminal struct {
	mu  sync.Mutex
	out io.Writer
	me  string
}

func (t *terminal) setMe(me string) {
	t.mu.Lock()
	t.me = me
	t.mu.Unlock()
}

func (t *terminal) BoardUpdated(_ string, s engine.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = render.Board(t.out, s, engine.ModeNone, t.me)
}

func (t *terminal) ChatReceived(_ string, m types.ChatMessage) {
	t.printf("[%s] %s\n", m.User, m.Message)
}

func (t *terminal) Notice(text string) {
	t.printf("! %s\n", text)
}

func (t *terminal) show(s engine.State, mode engine.Mode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = render.Board(t.out, s, mode, t.me)
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

func run(ctx context.Context, cfg config.Client, opts options, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return errors.New("usage: client [flags] solo|host|join <id>|resume|list|leaderboard|stats")
	}

	tokens := auth.NewTokenStore(cfg.TokenFile)
	api, err := apiclient.New(cfg.BaseURL, tokens.Token, apiclient.WithLogger(log))
	if err != nil {
		return err
	}

	var chat chatstore.Store = chatstore.NewMemory()
	if cfg.ChatRedisURL != "" {
		rc, err := chatstore.NewRedis(ctx, cfg.ChatRedisURL, uuid.NewString())
		if err != nil {
			return err
		}
		chat = rc
	}
	defer func() { _ = chat.Close() }()

	term := &terminal{out: os.Stdout}
	sess := session.New(ctx, session.Config{
		BaseURL:       cfg.BaseURL,
		Header:        api.Header,
		Chat:          chat,
		Listener:      term,
		Logger:        log,
		MaxRetryDelay: cfg.MaxRetryDelay,
	})
	defer sess.Close()

	authClient := auth.New(api, tokens, auth.WithLogger(log), auth.WithOnContext(func(uc *types.UserContext) {
		if uc != nil {
			term.setMe(uc.Identity())
		}
	}))
	ctl := client.New(authClient, matchmaking.New(api, matchmaking.WithLogger(log)), sess, log)

	if err := signIn(ctx, ctl, opts); err != nil {
		return err
	}

	switch args[0] {
	case "list":
		ids, err := ctl.OpenMatches(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil

	case "leaderboard":
		board, err := ctl.Leaderboard(ctx)
		if err != nil {
			return err
		}
		for i, u := range board {
			fmt.Printf("%2d. %-20s %3d W %3d L\n", i+1, u.Username, u.Wins, u.Loses)
		}
		return nil

	case "stats":
		st, err := ctl.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d wins, %d loses\n", st.Username, st.Wins, st.Loses)
		return nil

	case "solo":
		if _, err := ctl.Solo(ctx); err != nil {
			return err
		}

	case "join":
		if len(args) < 2 {
			return errors.New("join needs a match id")
		}
		if _, err := ctl.Join(ctx, args[1]); err != nil {
			return err
		}

	case "host":
		h, err := ctl.Host(ctx)
		if err != nil {
			return err
		}
		term.printf("waiting for an opponent...\n")
		if _, err := ctl.AwaitHost(ctx, h); err != nil {
			return err
		}

	case "resume":
		if _, err := sess.ActiveGame(ctx); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	if id, err := sess.ActiveGame(ctx); err != nil || id == "" {
		return errors.New("no active match")
	}
	return play(ctx, ctl, term, os.Stdin)
}

// signIn restores a stored session unless credentials were given.
func signIn(ctx context.Context, ctl *client.Controller, opts options) error {
	var err error
	switch {
	case opts.guest != "":
		_, err = ctl.RegisterGuest(ctx, opts.guest)
	case opts.register != "":
		_, err = ctl.RegisterUser(ctx, opts.register, opts.password, opts.email)
	case opts.email != "":
		_, err = ctl.Login(ctx, opts.email, opts.password)
	default:
		_, err = ctl.Restore(ctx)
		if errors.Is(err, auth.ErrNoToken) {
			return errors.New("not signed in: pass -guest or -email/-password")
		}
	}
	return err
}

var errQuit = errors.New("quit")

// play runs the interactive loop until quit, EOF or ctx ends.
func play(ctx context.Context, ctl *client.Controller, term *terminal, in io.Reader) error {
	// stdin reads cannot be interrupted, so the scanner is not part of the group
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-ctl.Session().Done():
			return errQuit
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case s, ok := <-lines:
				if !ok {
					return errQuit
				}
				quit, err := handle(ctx, ctl, term, s)
				if err != nil && !ignored(err) {
					term.printf("%s\n", apiclient.UserMessage(err))
				}
				if quit {
					return errQuit
				}
			}
		}
	})

	err := g.Wait()
	leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if lerr := ctl.LeaveMatch(leaveCtx); lerr != nil && !errors.Is(lerr, session.ErrStopped) {
		term.printf("%s\n", apiclient.UserMessage(lerr))
	}
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func handle(ctx context.Context, ctl *client.Controller, term *terminal, s string) (bool, error) {
	l, err := parseLine(s)
	if err != nil {
		return false, err
	}
	switch l.act {
	case actSubmit:
		return false, ctl.Submit(ctx, l.cmd)
	case actShow:
		st, loaded, err := ctl.Session().Board(ctx)
		if err != nil {
			return false, err
		}
		if !loaded {
			return false, session.ErrNoBoard
		}
		term.show(st, l.mode)
	case actSay:
		return false, ctl.Say(ctx, l.text)
	case actChat:
		id, err := ctl.Session().ActiveGame(ctx)
		if err != nil {
			return false, err
		}
		msgs, err := ctl.Session().ChatHistory(ctx, id)
		if err != nil {
			return false, err
		}
		for _, m := range msgs {
			term.printf("[%s] %s\n", m.User, m.Message)
		}
	case actLeave, actQuit:
		return true, nil
	}
	return false, nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/triviarena/triviarena-server/config"
	"github.com/triviarena/triviarena-server/game"
	"github.com/triviarena/triviarena-server/models"
	"github.com/triviarena/triviarena-server/repository"
)

// Server owns the TCP listener, the matchmaking queue, the liveness monitor
// and the lifecycle of match coordinators. Each accepted connection runs its
// own goroutine through the protocol state machine.
type Server struct {
	cfg       *config.Config
	store     repository.CredentialStore
	questions game.QuestionProvider
	history   repository.MatchHistory

	queue     *Queue
	reconnect *ReconnectMap
	liveness  *LivenessMonitor

	mu      sync.Mutex
	maxDiff int
	gameID  int
	active  int // running matches, for the stats endpoint

	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config, store repository.CredentialStore, questions game.QuestionProvider) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	queue := NewQueue()
	srv := &Server{
		cfg:       cfg,
		store:     store,
		questions: questions,
		history:   repository.NewMemoryHistory(),
		queue:     queue,
		reconnect: NewReconnectMap(),
		liveness:  NewLivenessMonitor(queue, cfg.PingInterval, cfg.PongTimeout, cfg.NotifyInterval),
		maxDiff:   cfg.MaxRankDiff,
	}
	srv.ctx = ctx
	srv.cancel = cancel

	srv.liveness.SetOnPrune(func(s *Session, pos int) {
		srv.reconnect.Save(s.Username(), pos)
		srv.store.Logout(s.Username())
	})
	return srv
}

// SetHistory replaces the default in-memory match history with a persistent
// one.
func (srv *Server) SetHistory(history repository.MatchHistory) {
	srv.history = history
}

// ListenAndServe binds the listener and accepts connections until Shutdown.
// A bind failure is returned to the caller and is fatal to the process.
func (srv *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding listener: %w", err)
	}
	srv.ln = ln
	log.Printf("Server is listening on %s", ln.Addr())

	srv.liveness.Start()
	if srv.cfg.GameMode == config.ModeRanked {
		srv.wg.Add(1)
		go srv.relaxLoop()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-srv.ctx.Done():
				return nil
			default:
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			srv.handleConn(conn)
		}()
	}
}

// Addr returns the bound listener address, for tests using port 0.
func (srv *Server) Addr() net.Addr {
	if srv.ln == nil {
		return nil
	}
	return srv.ln.Addr()
}

// Shutdown stops accepting, cancels background loops and waits for the
// liveness monitor. In-flight connection handlers are abandoned; closing
// their sockets is the only cancellation primitive they have.
func (srv *Server) Shutdown() {
	srv.cancel()
	if srv.ln != nil {
		srv.ln.Close()
	}
	srv.liveness.Stop()
}

// handleConn drives a fresh connection through the welcome exchange. Any
// payload outside the fixed menu is a silent disconnect.
func (srv *Server) handleConn(conn net.Conn) {
	s := NewSession(conn)

	for {
		if err := s.Send(models.Welcome); err != nil {
			s.Close()
			return
		}
		action, err := s.Recv()
		if err != nil || action == "" {
			s.Close()
			return
		}

		fields := strings.Fields(action)
		if len(fields) == 0 {
			s.Close()
			return
		}

		switch fields[0] {
		case models.ClientAuth:
			log.Println("[AUTH] A Client is authenticating")
			srv.handleAuth(s)
			return
		case models.ClientReconnect:
			log.Println("[RECONNECT] A Client is reconnecting with token")
			srv.handleReconnect(s)
			return
		case models.ClientRegister:
			log.Println("[AUTH] A Client is creating a new account")
			if srv.handleRegister(s) {
				// A fresh account re-enters the welcome exchange so it can
				// log in on the same connection.
				continue
			}
			return
		default:
			s.Close()
			return
		}
	}
}

// handleAuth runs the username/password exchange. Both bad credentials and
// an already-logged-in user close the connection; the wire codes differ.
func (srv *Server) handleAuth(s *Session) {
	if err := s.Send(models.AuthUsername); err != nil {
		s.Close()
		return
	}
	username, err := s.Recv()
	if err != nil {
		s.Close()
		return
	}
	s.SetUsername(username)

	if err := s.Send(models.AuthPassword); err != nil {
		s.Close()
		return
	}
	password, err := s.Recv()
	if err != nil {
		s.Close()
		return
	}

	ok, err := srv.store.Authenticate(username, password)
	if err != nil {
		log.Printf("[AUTH] Store error for %s: %v", username, err)
	}
	if err != nil || !ok {
		log.Printf("[AUTH] %s failed authentication", username)
		s.Send(models.AuthFail)
		s.Close()
		return
	}

	if err := srv.store.Login(username); err != nil {
		log.Printf("[AUTH] %s is already logged in", username)
		s.Send(models.AuthAlreadyLoggedIn)
		s.Close()
		return
	}

	// A fresh login forfeits any saved reconnect position.
	srv.reconnect.Take(username)

	rank, err := srv.store.Rank(username)
	if err != nil {
		srv.store.Logout(username)
		s.Send(models.AuthFail)
		s.Close()
		return
	}
	s.SetRank(rank)

	log.Printf("[AUTH] %s authenticated successfully", username)
	if err := s.Send(models.AuthSuccess); err != nil {
		srv.store.Logout(username)
		s.Close()
		return
	}
	srv.assignToken(s)
	srv.admit(s, 0)
}

// assignToken issues the session token and hands it to the client once per
// login.
func (srv *Server) assignToken(s *Session) {
	token, err := srv.store.IssueToken(s.Username())
	if err != nil {
		log.Printf("[AUTH] Failed to issue token for %s: %v", s.Username(), err)
		return
	}
	s.SetToken(token)
	if err := s.Send(models.Token + " " + token); err != nil {
		log.Printf("[AUTH] Failed to send token to %s: %v", s.Username(), err)
	}
}

// handleRegister runs the new-account exchange. Returns true when the
// account was created and the connection should re-enter the welcome state.
func (srv *Server) handleRegister(s *Session) bool {
	if err := s.Send(models.RegisterUsername); err != nil {
		s.Close()
		return false
	}
	username, err := s.Recv()
	if err != nil {
		s.Close()
		return false
	}
	s.SetUsername(username)

	if err := s.Send(models.RegisterPassword); err != nil {
		s.Close()
		return false
	}
	password, err := s.Recv()
	if err != nil {
		s.Close()
		return false
	}

	if username == "" || password == "" {
		log.Println("[REGISTRATION] Client failed registration: empty fields")
		s.Send(models.RegisterFail)
		s.Close()
		return false
	}

	if err := srv.store.CreateUser(username, password); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			log.Printf("[REGISTRATION] %s failed registration: username taken", username)
		} else {
			log.Printf("[REGISTRATION] %s failed registration: %v", username, err)
		}
		s.Send(models.RegisterFail)
		s.Close()
		return false
	}

	log.Printf("[REGISTRATION] New account created -> %s", username)
	if err := s.Send(models.RegisterSuccess); err != nil {
		s.Close()
		return false
	}
	return true
}

// handleReconnect resolves the presented token and replays the session's
// saved queue position. A rejected reconnect never invalidates the token:
// the legitimate other session may still be using it.
func (srv *Server) handleReconnect(s *Session) {
	if err := s.Send(models.RequestToken); err != nil {
		s.Close()
		return
	}
	token, err := s.Recv()
	if err != nil || token == "" {
		log.Println("[RECONNECT] Client reconnection failed")
		s.Send(models.ReconnectFail)
		s.Close()
		return
	}

	username, err := srv.store.ResolveToken(token)
	if err != nil {
		log.Println("[RECONNECT] Client reconnection failed")
		s.Send(models.ReconnectFail)
		s.Close()
		return
	}

	if err := srv.store.Login(username); err != nil {
		log.Printf("[RECONNECT] %s is already logged in", username)
		s.Send(models.ReconnectAlreadyLoggedIn)
		s.Close()
		return
	}

	s.SetUsername(username)
	s.SetToken(token)
	if rank, err := srv.store.Rank(username); err == nil {
		s.SetRank(rank)
	}

	savedPos, ok := srv.reconnect.Take(username)
	if !ok {
		savedPos = 0 // tail
	}
	log.Printf("[RECONNECT] %s reconnected with token", username)
	srv.admitReconnect(s, savedPos)
}

// admitReconnect enqueues at the saved position and reports it.
func (srv *Server) admitReconnect(s *Session, savedPos int) {
	pos := srv.queue.EnqueueAt(s, savedPos)
	if err := s.Send(fmt.Sprintf("%s %d", models.ReconnectSuccess, pos)); err != nil {
		// The heartbeat will prune the session if the socket is dead.
		log.Printf("[RECONNECT] Failed to confirm reconnect to %s: %v", s.Username(), err)
	}
	log.Printf("[QUEUE] Client %s was added to the Queue (%d waiting)", s.Username(), srv.queue.Len())
	srv.tryStartGame()
}

// admit enqueues the session (tail by default, or at pos for replay) and
// attempts match formation.
func (srv *Server) admit(s *Session, pos int) {
	s.ResetScore()
	actual := srv.queue.EnqueueAt(s, pos)
	_ = s.Send(fmt.Sprintf("Your queue position: %d", actual))
	log.Printf("[QUEUE] Client %s was added to the Queue (%d waiting)", s.Username(), srv.queue.Len())
	srv.tryStartGame()
}

// tryStartGame attempts formation under the current policy and launches a
// match coordinator when a group forms. A successful ranked formation
// resets the relaxed rank window to its base value.
func (srv *Server) tryStartGame() {
	var players []*Session
	switch srv.cfg.GameMode {
	case config.ModeRanked:
		players = srv.queue.FormRanked(srv.cfg.PlayersPerGame, srv.currentMaxDiff())
		if players != nil {
			srv.resetMaxDiff()
		}
	default:
		players = srv.queue.FormSimple(srv.cfg.PlayersPerGame)
	}
	if players == nil {
		return
	}

	srv.mu.Lock()
	srv.gameID++
	id := srv.gameID
	srv.active++
	srv.mu.Unlock()

	log.Printf("[GAME %d] Started Game", id)
	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		srv.runMatch(id, players)
	}()
}

func (srv *Server) runMatch(id int, players []*Session) {
	gamePlayers := make([]game.Player, len(players))
	for i, s := range players {
		gamePlayers[i] = s
	}

	g := game.New(id, gamePlayers, srv.store, srv.questions, game.Options{
		Rounds:        srv.cfg.Rounds,
		RankIncrement: srv.cfg.RankIncrement,
		AnswerTimeout: srv.cfg.AnswerTimeout,
		Countdown:     srv.cfg.Countdown,
	})
	startedAt := time.Now()
	survivors := g.Run()

	srv.mu.Lock()
	srv.active--
	srv.mu.Unlock()

	srv.recordMatch(g, players, startedAt)

	for _, p := range survivors {
		s, ok := p.(*Session)
		if !ok {
			continue
		}
		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			srv.requeueOrQuit(s)
		}()
	}
}

// requeueOrQuit runs the post-match choice. An unrecognized non-empty reply
// is a no-op: the connection stays open and nothing happens, which mirrors
// the rest of the protocol's terminal exchanges.
func (srv *Server) requeueOrQuit(s *Session) {
	if err := s.Send(models.RequeueOrQuit); err != nil {
		srv.logout(s)
		return
	}
	answer, err := s.Recv()
	if err != nil {
		srv.logout(s)
		return
	}
	if answer == "" {
		s.Close()
		return
	}

	switch answer {
	case models.Requeue:
		srv.admit(s, 0)
	case models.Quit:
		srv.store.Logout(s.Username())
		s.Close()
	default:
	}
}

// recordMatch writes the match summary to the history store. Best-effort.
func (srv *Server) recordMatch(g *game.Game, players []*Session, startedAt time.Time) {
	names := make([]string, len(players))
	scores := make(map[string]int, len(players))
	for i, s := range players {
		names[i] = s.Username()
		scores[s.Username()] = s.Score()
	}

	mode := "simple"
	if srv.cfg.GameMode == config.ModeRanked {
		mode = "ranked"
	}

	err := srv.history.Record(models.MatchRecord{
		ID:         g.ID(),
		Mode:       mode,
		Winner:     g.Winner(),
		Players:    names,
		Scores:     scores,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	})
	if err != nil {
		log.Printf("[GAME %d] Failed to record match: %v", g.ID(), err)
	}
}

func (srv *Server) logout(s *Session) {
	if s.Username() != "" {
		srv.store.Logout(s.Username())
	}
	s.Close()
}

// relaxLoop widens the acceptable rank gap on a fixed interval and retries
// formation, so a lopsided queue eventually matches.
func (srv *Server) relaxLoop() {
	defer srv.wg.Done()

	ticker := time.NewTicker(srv.cfg.RelaxInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			srv.mu.Lock()
			srv.maxDiff += srv.cfg.RelaxStep
			diff := srv.maxDiff
			srv.mu.Unlock()
			log.Printf("[MATCHMAKING] Increased Max Difference to %d", diff)
			srv.tryStartGame()
		case <-srv.ctx.Done():
			return
		}
	}
}

func (srv *Server) currentMaxDiff() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.maxDiff
}

func (srv *Server) resetMaxDiff() {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.maxDiff = srv.cfg.MaxRankDiff
}

func (srv *Server) activeMatches() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.active
}

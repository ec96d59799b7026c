package game

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/triviarena/triviarena-server/models"
	"github.com/triviarena/triviarena-server/repository"
)

// Player is the coordinator's view of a matched session.
type Player interface {
	Username() string
	Score() int
	AddScore(delta int)
	ResetScore()
	AddRank(delta int)
	Send(line string) error
	RecvTimeout(d time.Duration) (string, error)
	Close() error
}

// Options carries the per-match tunables.
type Options struct {
	Rounds        int
	RankIncrement int
	AnswerTimeout time.Duration
	Countdown     time.Duration
}

// Game coordinates one match to completion: announcement, countdown, the
// round loop with its answer barrier, scoring, rank adjustment. The server
// handles the requeue-or-quit exchange afterwards with the players Run
// returns.
type Game struct {
	id       int
	players  []Player
	store    repository.CredentialStore
	provider QuestionProvider
	opts     Options

	mu           sync.Mutex
	disconnected map[Player]bool
	running      bool
	winner       string
}

func New(id int, players []Player, store repository.CredentialStore, provider QuestionProvider, opts Options) *Game {
	return &Game{
		id:           id,
		players:      players,
		store:        store,
		provider:     provider,
		opts:         opts,
		disconnected: make(map[Player]bool),
		running:      true,
	}
}

func (g *Game) ID() int {
	return g.id
}

// Winner returns the winning username, or "" for a draw or an unfinished
// match.
func (g *Game) Winner() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner
}

// Run plays the match and returns the players still connected at the end.
func (g *Game) Run() []Player {
	questions, err := g.provider.Questions(g.opts.Rounds)
	if err != nil {
		log.Printf("[GAME %d] Failed to load questions: %v", g.id, err)
		g.broadcast("Match cancelled: no questions available.")
		return g.connectedPlayers()
	}

	g.announce()
	g.countdown()

	for round := 1; round <= g.opts.Rounds; round++ {
		if !g.isRunning() {
			break
		}
		g.playRound(round, questions[round-1])
	}

	g.endGame()
	return g.connectedPlayers()
}

func (g *Game) announce() {
	names := make([]string, len(g.players))
	for i, p := range g.players {
		p.ResetScore()
		names[i] = p.Username()
	}
	g.broadcast(fmt.Sprintf("Match %d found! Players: %s", g.id, strings.Join(names, " vs ")))
}

func (g *Game) countdown() {
	if g.opts.Countdown <= 0 {
		return
	}
	step := g.opts.Countdown / 3
	for i := 3; i >= 1; i-- {
		g.broadcast(fmt.Sprintf("Starting in %d...", i))
		time.Sleep(step)
	}
}

// playRound broadcasts the question, then collects every player's answer
// concurrently. The barrier releases once each player has answered, timed
// out or been detected as disconnected, so a single dead player never
// stalls the round for the others.
func (g *Game) playRound(round int, question models.TriviaQuestion) {
	g.broadcast(fmt.Sprintf("Round %d of %d: %s", round, g.opts.Rounds, question.Question))

	var wg sync.WaitGroup
	for _, p := range g.players {
		if g.isDisconnected(p) {
			continue
		}
		wg.Add(1)
		go func(p Player) {
			defer wg.Done()
			g.collectAnswer(round, p, question.CorrectAnswer)
		}(p)
	}
	wg.Wait()

	g.broadcastScores(round)
}

// collectAnswer asks one player for an answer and scores it. A timed-out
// answer counts as wrong; only a transport error counts as a disconnect.
func (g *Game) collectAnswer(round int, p Player, correct string) {
	if err := p.Send(models.ProvideAnswer); err != nil {
		g.dropPlayer(p, round, err)
		return
	}

	answer, err := p.RecvTimeout(g.opts.AnswerTimeout)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			log.Printf("[GAME %d] %s did not answer round %d in time", g.id, p.Username(), round)
			return
		}
		g.dropPlayer(p, round, err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(correct)) {
		p.AddScore(1)
	}
}

// dropPlayer records a mid-match departure: the player is logged out and
// closed, but the round continues for everyone else.
func (g *Game) dropPlayer(p Player, round int, err error) {
	g.mu.Lock()
	if g.disconnected[p] {
		g.mu.Unlock()
		return
	}
	g.disconnected[p] = true
	remaining := len(g.players) - len(g.disconnected)
	if remaining == 0 {
		g.running = false
	}
	g.mu.Unlock()

	log.Printf("[GAME %d] %s disconnected during round %d: %v", g.id, p.Username(), round, err)
	g.store.Logout(p.Username())
	p.Close()
}

func (g *Game) broadcast(line string) {
	for _, p := range g.players {
		if g.isDisconnected(p) {
			continue
		}
		if err := p.Send(line); err != nil {
			g.dropPlayer(p, 0, err)
		}
	}
}

func (g *Game) broadcastScores(round int) {
	parts := make([]string, len(g.players))
	for i, p := range g.players {
		parts[i] = fmt.Sprintf("%s=%d", p.Username(), p.Score())
	}
	g.broadcast(fmt.Sprintf("Scores after round %d: %s", round, strings.Join(parts, " ")))
}

// endGame determines the winner and applies the rank swing. The winner is
// the first participant holding the running-max score; if every score is
// equal (including all-zero) there is no winner and ranks are unchanged.
func (g *Game) endGame() {
	winner := g.pickWinner()
	if winner == nil {
		log.Printf("[GAME %d] Ended with no winner", g.id)
		g.broadcast("Match over: it's a draw, ranks unchanged.")
		return
	}

	g.mu.Lock()
	g.winner = winner.Username()
	g.mu.Unlock()

	inc := g.opts.RankIncrement
	loserPenalty := inc
	if len(g.players) > 2 {
		loserPenalty = inc / (len(g.players) - 1)
	}

	for _, p := range g.players {
		delta := -loserPenalty
		if p == winner {
			delta = inc
		}
		if err := g.store.IncrementRank(p.Username(), delta); err != nil {
			log.Printf("[GAME %d] Failed to adjust rank for %s: %v", g.id, p.Username(), err)
			continue
		}
		p.AddRank(delta)
	}

	log.Printf("[GAME %d] Winner: %s (score %d)", g.id, winner.Username(), winner.Score())
	g.broadcast(fmt.Sprintf("Match over: %s wins with score %d!", winner.Username(), winner.Score()))
}

// pickWinner scans participants in order keeping the first strict maximum.
// Ties between the best scores resolve to the earliest participant, which is
// deterministic; a full tie means no winner.
func (g *Game) pickWinner() Player {
	winner := g.players[0]
	allEqual := true
	for _, p := range g.players[1:] {
		if p.Score() != winner.Score() {
			allEqual = false
		}
		if p.Score() > winner.Score() {
			winner = p
		}
	}
	if allEqual {
		return nil
	}
	return winner
}

func (g *Game) isRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *Game) isDisconnected(p Player) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disconnected[p]
}

func (g *Game) connectedPlayers() []Player {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []Player
	for _, p := range g.players {
		if !g.disconnected[p] {
			out = append(out, p)
		}
	}
	return out
}

package game

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triviarena/triviarena-server/models"
	"github.com/triviarena/triviarena-server/repository"
)

// timeoutError satisfies net.Error the way a deadline-expired read does.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

const (
	answerTimeout = "<timeout>"
	answerHangup  = "<hangup>"
)

// fakePlayer scripts one answer per round. The sentinel answers simulate a
// deadline expiry and a dropped connection.
type fakePlayer struct {
	name    string
	answers []string

	mu     sync.Mutex
	next   int
	score  int
	rank   int
	closed bool
	sent   []string
}

func (p *fakePlayer) Username() string { return p.name }

func (p *fakePlayer) Score() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.score
}

func (p *fakePlayer) AddScore(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.score += delta
}

func (p *fakePlayer) ResetScore() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.score = 0
}

func (p *fakePlayer) AddRank(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rank += delta
}

func (p *fakePlayer) Send(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return io.ErrClosedPipe
	}
	p.sent = append(p.sent, line)
	return nil
}

func (p *fakePlayer) RecvTimeout(time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", io.ErrClosedPipe
	}
	if p.next >= len(p.answers) {
		return "", timeoutError{}
	}
	answer := p.answers[p.next]
	p.next++
	switch answer {
	case answerTimeout:
		return "", timeoutError{}
	case answerHangup:
		p.closed = true
		return "", io.ErrClosedPipe
	}
	return answer, nil
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePlayer) sentLines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	copy(out, p.sent)
	return out
}

func testQuestions() *StaticProvider {
	return &StaticProvider{Items: []models.TriviaQuestion{
		{Question: "Language of this server?", CorrectAnswer: "Go"},
	}}
}

func testStore(t *testing.T, usernames ...string) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore(repository.BcryptHasher{Cost: 4}, 100)
	for _, u := range usernames {
		require.NoError(t, store.CreateUser(u, "pw"))
	}
	return store
}

func testOptions() Options {
	return Options{Rounds: 4, RankIncrement: 10, AnswerTimeout: time.Second}
}

func TestGameScoringAndRankSwing(t *testing.T) {
	store := testStore(t, "alice", "bob")
	alice := &fakePlayer{name: "alice", answers: []string{"Go", "Go", "Go", "Go"}, rank: 100}
	bob := &fakePlayer{name: "bob", answers: []string{"Rust", "Java", "C", "Perl"}, rank: 100}

	g := New(1, []Player{alice, bob}, store, testQuestions(), testOptions())
	survivors := g.Run()

	assert.Equal(t, 4, alice.Score())
	assert.Equal(t, 0, bob.Score())
	assert.Len(t, survivors, 2)

	aliceRank, err := store.Rank("alice")
	require.NoError(t, err)
	bobRank, err := store.Rank("bob")
	require.NoError(t, err)
	assert.Equal(t, 110, aliceRank)
	assert.Equal(t, 90, bobRank)
	// Zero-sum swing for a two-player match.
	assert.Equal(t, 200, aliceRank+bobRank)
	assert.Equal(t, 110, alice.rank)
	assert.Equal(t, 90, bob.rank)

	assert.Contains(t, alice.sentLines(), "Match over: alice wins with score 4!")
}

func TestGameCaseInsensitiveAnswers(t *testing.T) {
	store := testStore(t, "alice", "bob")
	alice := &fakePlayer{name: "alice", answers: []string{"gO", " go ", "GO", "go"}}
	bob := &fakePlayer{name: "bob", answers: []string{"no", "no", "no", "no"}}

	g := New(1, []Player{alice, bob}, store, testQuestions(), testOptions())
	g.Run()

	assert.Equal(t, 4, alice.Score())
}

func TestGameDrawLeavesRanksUnchanged(t *testing.T) {
	store := testStore(t, "alice", "bob")
	alice := &fakePlayer{name: "alice", answers: []string{"no", "no", "no", "no"}}
	bob := &fakePlayer{name: "bob", answers: []string{"nope", "nope", "nope", "nope"}}

	g := New(1, []Player{alice, bob}, store, testQuestions(), testOptions())
	g.Run()

	aliceRank, err := store.Rank("alice")
	require.NoError(t, err)
	bobRank, err := store.Rank("bob")
	require.NoError(t, err)
	assert.Equal(t, 100, aliceRank)
	assert.Equal(t, 100, bobRank)

	assert.Contains(t, alice.sentLines(), "Match over: it's a draw, ranks unchanged.")
}

func TestGameDisconnectReleasesBarrier(t *testing.T) {
	store := testStore(t, "alice", "bob")
	require.NoError(t, store.Login("bob"))

	alice := &fakePlayer{name: "alice", answers: []string{"Go", "Go", "Go", "Go"}}
	bob := &fakePlayer{name: "bob", answers: []string{answerHangup}}

	g := New(1, []Player{alice, bob}, store, testQuestions(), testOptions())

	done := make(chan []Player, 1)
	go func() { done <- g.Run() }()

	select {
	case survivors := <-done:
		require.Len(t, survivors, 1)
		assert.Equal(t, "alice", survivors[0].Username())
	case <-time.After(5 * time.Second):
		t.Fatal("round barrier stalled on a disconnected player")
	}

	// The departure logs bob out and closes him; the match still finishes.
	assert.False(t, store.IsLoggedIn("bob"))
	assert.True(t, bob.closed)
	assert.Equal(t, 4, alice.Score())

	aliceRank, err := store.Rank("alice")
	require.NoError(t, err)
	assert.Equal(t, 110, aliceRank)
}

func TestGameAnswerTimeoutCountsAsWrong(t *testing.T) {
	store := testStore(t, "alice", "bob")
	alice := &fakePlayer{name: "alice", answers: []string{"Go", "Go", "Go", "Go"}}
	bob := &fakePlayer{name: "bob", answers: []string{answerTimeout, answerTimeout, answerTimeout, answerTimeout}}

	g := New(1, []Player{alice, bob}, store, testQuestions(), testOptions())
	survivors := g.Run()

	// A silent but connected player stays in the match.
	assert.Len(t, survivors, 2)
	assert.Equal(t, 0, bob.Score())
	assert.False(t, bob.closed)

	bobRank, err := store.Rank("bob")
	require.NoError(t, err)
	assert.Equal(t, 90, bobRank)
}

func TestGameThreePlayerRankSwing(t *testing.T) {
	store := testStore(t, "alice", "bob", "carol")
	alice := &fakePlayer{name: "alice", answers: []string{"Go", "Go", "Go", "Go"}}
	bob := &fakePlayer{name: "bob", answers: []string{"Go", "no", "no", "no"}}
	carol := &fakePlayer{name: "carol", answers: []string{"no", "no", "no", "no"}}

	g := New(1, []Player{alice, bob, carol}, store, testQuestions(), testOptions())
	g.Run()

	aliceRank, _ := store.Rank("alice")
	bobRank, _ := store.Rank("bob")
	carolRank, _ := store.Rank("carol")

	// Winner gains the full increment, the others split the loss.
	assert.Equal(t, 110, aliceRank)
	assert.Equal(t, 95, bobRank)
	assert.Equal(t, 95, carolRank)
}

func TestGameWinnerTieResolvesToEarliest(t *testing.T) {
	store := testStore(t, "alice", "bob", "carol")
	alice := &fakePlayer{name: "alice", answers: []string{"Go", "no", "no", "no"}}
	bob := &fakePlayer{name: "bob", answers: []string{"Go", "no", "no", "no"}}
	carol := &fakePlayer{name: "carol", answers: []string{"no", "no", "no", "no"}}

	g := New(1, []Player{alice, bob, carol}, store, testQuestions(), testOptions())
	g.Run()

	// alice and bob tie at 1; the earliest participant scanned wins.
	aliceRank, _ := store.Rank("alice")
	require.Equal(t, 110, aliceRank)
}

func TestGameNoQuestions(t *testing.T) {
	store := testStore(t, "alice", "bob")
	alice := &fakePlayer{name: "alice"}
	bob := &fakePlayer{name: "bob"}

	g := New(1, []Player{alice, bob}, store, &StaticProvider{}, testOptions())
	survivors := g.Run()

	assert.Len(t, survivors, 2)
	assert.Contains(t, alice.sentLines(), "Match cancelled: no questions available.")

	aliceRank, _ := store.Rank("alice")
	assert.Equal(t, 100, aliceRank)
}

package server

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triviarena/triviarena-server/models"
)

func TestPingSessionHealthy(t *testing.T) {
	client, serverConn := net.Pipe()
	defer client.Close()
	defer serverConn.Close()

	s := NewSession(serverConn)
	m := NewLivenessMonitor(NewQueue(), time.Hour, 500*time.Millisecond, time.Hour)

	go func() {
		reader := bufio.NewReader(client)
		line, err := reader.ReadString('\n')
		if err != nil || line != models.Ping+"\n" {
			return
		}
		client.Write([]byte(models.Pong + "\n"))
	}()

	assert.True(t, m.pingSession(s))
	assert.False(t, s.LastResponseTime().IsZero())
}

func TestPingSessionTimeout(t *testing.T) {
	client, serverConn := net.Pipe()
	defer client.Close()
	defer serverConn.Close()

	s := NewSession(serverConn)
	m := NewLivenessMonitor(NewQueue(), time.Hour, 50*time.Millisecond, time.Hour)

	// Client reads the PING but never replies.
	go bufio.NewReader(client).ReadString('\n')

	start := time.Now()
	assert.False(t, m.pingSession(s))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPingSessionWrongReply(t *testing.T) {
	client, serverConn := net.Pipe()
	defer client.Close()
	defer serverConn.Close()

	s := NewSession(serverConn)
	m := NewLivenessMonitor(NewQueue(), time.Hour, 500*time.Millisecond, time.Hour)

	go func() {
		bufio.NewReader(client).ReadString('\n')
		client.Write([]byte("NONSENSE\n"))
	}()

	assert.False(t, m.pingSession(s))
}

func TestLivenessPrunesDeadSessions(t *testing.T) {
	q := NewQueue()
	alive := newTestSession(t, "alive", 100)
	dead := newTestSession(t, "dead", 100)
	q.Enqueue(alive)
	q.Enqueue(dead)

	m := NewLivenessMonitor(q, 20*time.Millisecond, 10*time.Millisecond, time.Hour)
	m.SetProbe(func(s *Session) bool { return s != dead })

	var mu sync.Mutex
	pruned := map[string]int{}
	m.SetOnPrune(func(s *Session, pos int) {
		mu.Lock()
		pruned[s.Username()] = pos
		mu.Unlock()
	})

	m.Start()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return q.PositionOf(dead) == 0
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// The position is captured while the session is still queued.
	assert.Equal(t, map[string]int{"dead": 2}, pruned)
	assert.Equal(t, 1, q.PositionOf(alive))
}

func TestSweepBlocksFormationWhileProbing(t *testing.T) {
	q := NewQueue()
	s := newTestSession(t, "racer", 100)
	q.Enqueue(s)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	formed := make(chan []*Session, 1)

	go func() {
		q.Sweep(func(*Session) bool {
			close(probeStarted)
			<-release
			return true
		})
	}()

	<-probeStarted
	go func() { formed <- q.FormSimple(1) }()

	select {
	case <-formed:
		t.Fatal("formation took a session with a probe still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case players := <-formed:
		require.Equal(t, []*Session{s}, players)
	case <-time.After(time.Second):
		t.Fatal("formation never completed after the sweep finished")
	}
}

func TestHeartbeatNeverStealsRoundAnswer(t *testing.T) {
	q := NewQueue()
	m := NewLivenessMonitor(q, time.Hour, time.Second, time.Hour)

	client, serverConn := net.Pipe()
	defer client.Close()
	defer serverConn.Close()
	s := NewSession(serverConn)
	s.SetUsername("a")
	q.Enqueue(s)

	// The client answers the heartbeat and immediately sends its round
	// answer. The sweep must consume only the PONG.
	go func() {
		reader := bufio.NewReader(client)
		reader.ReadString('\n')
		client.Write([]byte(models.Pong + "\n"))
		client.Write([]byte("Go\n"))
	}()

	m.pingAll()
	require.Equal(t, 1, q.PositionOf(s))

	players := q.FormSimple(1)
	require.Len(t, players, 1)
	answer, err := players[0].RecvTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Go", answer)
}

func TestMatchedSessionIsNeverPruned(t *testing.T) {
	q := NewQueue()
	s := newTestSession(t, "racer", 100)
	q.Enqueue(s)

	m := NewLivenessMonitor(q, time.Hour, 10*time.Millisecond, time.Hour)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	m.SetProbe(func(*Session) bool {
		close(probeStarted)
		<-release
		return false
	})

	var mu sync.Mutex
	pruned := map[string]int{}
	m.SetOnPrune(func(s *Session, pos int) {
		mu.Lock()
		pruned[s.Username()] = pos
		mu.Unlock()
	})

	swept := make(chan struct{})
	go func() {
		m.pingAll()
		close(swept)
	}()
	<-probeStarted

	// Formation racing the sweep waits for it; the failed session is gone
	// by the time formation gets the queue, so exactly one side owns it.
	formed := make(chan []*Session, 1)
	go func() { formed <- q.FormSimple(1) }()
	close(release)
	<-swept

	assert.Nil(t, <-formed)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"racer": 1}, pruned)
	assert.Equal(t, 0, q.Len())
}

func TestNotifyPositions(t *testing.T) {
	q := NewQueue()

	client, serverConn := net.Pipe()
	defer client.Close()
	defer serverConn.Close()
	s := NewSession(serverConn)
	s.SetUsername("a")
	q.Enqueue(s)

	m := NewLivenessMonitor(q, time.Hour, time.Second, time.Hour)

	done := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(client).ReadString('\n')
		done <- line
	}()

	m.notifyPositions()

	select {
	case line := <-done:
		assert.Equal(t, "Your queue position: 1\n", line)
	case <-time.After(time.Second):
		t.Fatal("no position notification received")
	}
}

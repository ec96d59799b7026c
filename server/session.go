package server

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"time"
)

// Session is the server-side state for one connected client. It is created
// on accept and lives until the socket closes; persisted state (rank,
// credentials, token) lives in the CredentialStore, never here.
type Session struct {
	conn   net.Conn
	reader *bufio.Reader

	mu               sync.Mutex
	username         string
	rank             int
	score            int
	token            string
	lastResponseTime time.Time
}

func NewSession(conn net.Conn) *Session {
	return &Session{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Send writes one newline-terminated line to the client.
func (s *Session) Send(line string) error {
	_, err := s.conn.Write([]byte(line + "\n"))
	return err
}

// Recv blocks until the next line arrives. A slow client blocks only its
// own caller.
func (s *Session) Recv() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// RecvTimeout reads the next line with a deadline. Used for the heartbeat
// reply wait and the bounded round-answer wait.
func (s *Session) RecvTimeout(d time.Duration) (string, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return "", err
	}
	defer s.conn.SetReadDeadline(time.Time{})

	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *Session) SetUsername(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
}

func (s *Session) Rank() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rank
}

func (s *Session) SetRank(rank int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rank = rank
}

func (s *Session) AddRank(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rank += delta
}

func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

func (s *Session) AddScore(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score += delta
}

func (s *Session) ResetScore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.score = 0
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// TouchResponse records the time of the most recent heartbeat reply.
func (s *Session) TouchResponse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResponseTime = time.Now()
}

func (s *Session) LastResponseTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResponseTime
}

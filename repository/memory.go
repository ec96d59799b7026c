package repository

import (
	"sync"

	"github.com/triviarena/triviarena-server/models"
)

// MemoryStore is a map-backed CredentialStore used by tests and the
// DB_BACKEND=memory development mode. Nothing survives a restart.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[string]*models.User
	loggedIn    map[string]bool
	hasher      Hasher
	defaultRank int
}

func NewMemoryStore(hasher Hasher, defaultRank int) *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*models.User),
		loggedIn:    make(map[string]bool),
		hasher:      hasher,
		defaultRank: defaultRank,
	}
}

func (s *MemoryStore) Authenticate(username, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return false, nil
	}
	return s.hasher.Compare(user.Password, password), nil
}

func (s *MemoryStore) CreateUser(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return ErrUserExists
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	s.users[username] = &models.User{
		Username: username,
		Password: hashed,
		Rank:     s.defaultRank,
	}
	return nil
}

func (s *MemoryStore) Rank(username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return 0, ErrUserNotFound
	}
	return user.Rank, nil
}

func (s *MemoryStore) IncrementRank(username string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	user.Rank += delta
	return nil
}

func (s *MemoryStore) IssueToken(username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return "", ErrUserNotFound
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	hashed, err := s.hasher.Hash(token)
	if err != nil {
		return "", err
	}
	user.SessionToken = hashed
	return token, nil
}

func (s *MemoryStore) ResolveToken(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for username, user := range s.users {
		if user.SessionToken != "" && s.hasher.Compare(user.SessionToken, token) {
			return username, nil
		}
	}
	return "", ErrUnknownToken
}

func (s *MemoryStore) Login(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggedIn[username] {
		return ErrAlreadyLoggedIn
	}
	s.loggedIn[username] = true
	return nil
}

func (s *MemoryStore) Logout(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loggedIn, username)
}

func (s *MemoryStore) IsLoggedIn(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn[username]
}

package repository

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/triviarena/triviarena-server/config"
)

// PostgresStore persists accounts, ranks and session-token hashes in
// PostgreSQL. Logged-in flags stay in memory: a crash must not leave users
// permanently marked as logged in.
//
// Schema:
//
//	CREATE TABLE users (
//	    username TEXT PRIMARY KEY,
//	    password TEXT NOT NULL,
//	    rank     INTEGER NOT NULL
//	);
//	CREATE TABLE session_tokens (
//	    username   TEXT PRIMARY KEY REFERENCES users (username),
//	    token_hash TEXT NOT NULL
//	);
type PostgresStore struct {
	db          *sql.DB
	hasher      Hasher
	defaultRank int

	mu       sync.Mutex
	loggedIn map[string]bool
}

// ConnectToPostgreSQL opens and pings the database described by cfg.
func ConnectToPostgreSQL(cfg *config.Config) *sql.DB {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalln(err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		log.Fatal(err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return db
}

func NewPostgresStore(db *sql.DB, hasher Hasher, defaultRank int) *PostgresStore {
	return &PostgresStore{
		db:          db,
		hasher:      hasher,
		defaultRank: defaultRank,
		loggedIn:    make(map[string]bool),
	}
}

func (s *PostgresStore) Authenticate(username, password string) (bool, error) {
	var hashed string
	err := s.db.QueryRow("SELECT password FROM users WHERE username = $1", username).Scan(&hashed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.hasher.Compare(hashed, password), nil
}

func (s *PostgresStore) CreateUser(username, password string) error {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)", username).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrUserExists
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("INSERT INTO users (username, password, rank) VALUES ($1, $2, $3)",
		username, hashed, s.defaultRank)
	return err
}

func (s *PostgresStore) Rank(username string) (int, error) {
	var rank int
	err := s.db.QueryRow("SELECT rank FROM users WHERE username = $1", username).Scan(&rank)
	if err == sql.ErrNoRows {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return rank, nil
}

func (s *PostgresStore) IncrementRank(username string, delta int) error {
	res, err := s.db.Exec("UPDATE users SET rank = rank + $1 WHERE username = $2", delta, username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) IssueToken(username string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	hashed, err := s.hasher.Hash(token)
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(`INSERT INTO session_tokens (username, token_hash) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET token_hash = $2`, username, hashed)
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResolveToken scans the stored hashes; bcrypt hashes are salted, so the
// token cannot be looked up by equality.
func (s *PostgresStore) ResolveToken(token string) (string, error) {
	rows, err := s.db.Query("SELECT username, token_hash FROM session_tokens")
	if err != nil {
		return "", err
	}
	defer rows.Close()

	for rows.Next() {
		var username, hashed string
		if err := rows.Scan(&username, &hashed); err != nil {
			return "", err
		}
		if s.hasher.Compare(hashed, token) {
			return username, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return "", ErrUnknownToken
}

func (s *PostgresStore) Login(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggedIn[username] {
		return ErrAlreadyLoggedIn
	}
	s.loggedIn[username] = true
	return nil
}

func (s *PostgresStore) Logout(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loggedIn, username)
}

func (s *PostgresStore) IsLoggedIn(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn[username]
}

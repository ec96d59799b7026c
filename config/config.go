package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Game modes.
const (
	ModeSimple = 0
	ModeRanked = 1
)

type Config struct {
	ListenPort string
	StatsAddr  string

	DBBackend  string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	GameMode       int
	PlayersPerGame int
	Rounds         int
	RankIncrement  int
	DefaultRank    int

	PingInterval   time.Duration
	PongTimeout    time.Duration
	NotifyInterval time.Duration
	AnswerTimeout  time.Duration
	Countdown      time.Duration

	MaxRankDiff   int
	RelaxStep     int
	RelaxInterval time.Duration

	QuestionsFile string
	QuestionsURL  string
}

func LoadConfig() *Config {
	return &Config{
		ListenPort: getEnv("LISTEN_PORT", "8080"),
		StatsAddr:  getEnv("STATS_ADDR", ":8000"),

		DBBackend:  getEnv("DB_BACKEND", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "user"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "triviarena"),

		GameMode:       getEnvInt("GAME_MODE", ModeSimple),
		PlayersPerGame: getEnvInt("PLAYERS_PER_GAME", 2),
		Rounds:         getEnvInt("ROUNDS", 4),
		RankIncrement:  getEnvInt("RANK_INCREMENT", 10),
		DefaultRank:    getEnvInt("DEFAULT_RANK", 100),

		PingInterval:   getEnvDuration("PING_INTERVAL", 3*time.Second),
		PongTimeout:    getEnvDuration("PONG_TIMEOUT", 2*time.Second),
		NotifyInterval: getEnvDuration("NOTIFY_INTERVAL", 10*time.Second),
		AnswerTimeout:  getEnvDuration("ANSWER_TIMEOUT", 30*time.Second),
		Countdown:      getEnvDuration("COUNTDOWN", 3*time.Second),

		MaxRankDiff:   getEnvInt("MATCHMAKING_MAX_DIFF", 100),
		RelaxStep:     getEnvInt("MATCHMAKING_RELAX", 100),
		RelaxInterval: getEnvDuration("MATCHMAKING_RELAX_INTERVAL", 30*time.Second),

		QuestionsFile: getEnv("QUESTIONS_FILE", "questions.json"),
		QuestionsURL:  getEnv("QUESTIONS_URL", ""),
	}
}

// getEnv reads an environment variable and returns its value or a default value
func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = defaultValue
		log.Printf("Environment variable %s not set, using default value: %s", key, defaultValue)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Environment variable %s is not a number, using default value: %d", key, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Environment variable %s is not a duration, using default value: %s", key, defaultValue)
		return defaultValue
	}
	return d
}

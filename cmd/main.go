package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/triviarena/triviarena-server/config"
	"github.com/triviarena/triviarena-server/game"
	"github.com/triviarena/triviarena-server/repository"
	"github.com/triviarena/triviarena-server/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded, using process environment")
	}

	cfg := config.LoadConfig()

	// One positional argument: the listen port.
	port := cfg.ListenPort
	if len(os.Args) > 1 {
		port = os.Args[1]
	}

	hasher := repository.BcryptHasher{}
	var store repository.CredentialStore
	var history repository.MatchHistory
	if cfg.DBBackend == "memory" {
		store = repository.NewMemoryStore(hasher, cfg.DefaultRank)
		history = repository.NewMemoryHistory()
		log.Println("Using in-memory credential store")
	} else {
		db := repository.ConnectToPostgreSQL(cfg)
		store = repository.NewPostgresStore(db, hasher, cfg.DefaultRank)
		history = repository.NewPostgresHistory(db)
	}

	var questions game.QuestionProvider
	if cfg.QuestionsURL != "" {
		questions = game.NewHTTPProvider(cfg.QuestionsURL)
	} else {
		questions = &game.FileProvider{Path: cfg.QuestionsFile}
	}

	srv := server.New(cfg, store, questions)
	srv.SetHistory(history)

	go func() {
		log.Printf("Stats API running on %s", cfg.StatsAddr)
		if err := http.ListenAndServe(cfg.StatsAddr, srv.Router()); err != nil {
			log.Printf("Stats API stopped: %v", err)
		}
	}()

	if err := srv.ListenAndServe(":" + port); err != nil {
		log.Fatal(err)
	}
}

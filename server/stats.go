package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/triviarena/triviarena-server/config"
	"github.com/triviarena/triviarena-server/models"
	"github.com/triviarena/triviarena-server/utils"
)

// QueueEntry is one queued player in the stats payload.
type QueueEntry struct {
	Username string `json:"username"`
	Rank     int    `json:"rank"`
	Position int    `json:"position"`
}

// Stats is the payload served by /api/stats.
type Stats struct {
	GameMode      string       `json:"game_mode"`
	QueueLength   int          `json:"queue_length"`
	Queue         []QueueEntry `json:"queue"`
	ActiveMatches int          `json:"active_matches"`
	MatchesPlayed int          `json:"matches_played"`
	MaxRankDiff   int          `json:"max_rank_diff"`
}

// Router returns the HTTP router for the stats listener that runs beside
// the TCP server.
func (srv *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", srv.healthHandler).Methods("GET")
	r.HandleFunc("/api/stats", srv.statsHandler).Methods("GET")
	r.HandleFunc("/api/matches", srv.matchesHandler).Methods("GET")
	return r
}

func (srv *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"status": "ok"}))
}

func (srv *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := srv.queue.Snapshot()
	entries := make([]QueueEntry, len(snapshot))
	for i, s := range snapshot {
		entries[i] = QueueEntry{
			Username: s.Username(),
			Rank:     s.Rank(),
			Position: i + 1,
		}
	}

	mode := "simple"
	if srv.cfg.GameMode == config.ModeRanked {
		mode = "ranked"
	}

	played, err := srv.history.Count()
	if err != nil {
		utils.HandleError(w, http.StatusInternalServerError, "Failed to load match history.")
		return
	}

	utils.HandleSuccess(w, models.SuccessResponse(Stats{
		GameMode:      mode,
		QueueLength:   len(entries),
		Queue:         entries,
		ActiveMatches: srv.activeMatches(),
		MatchesPlayed: played,
		MaxRankDiff:   srv.currentMaxDiff(),
	}))
}

func (srv *Server) matchesHandler(w http.ResponseWriter, r *http.Request) {
	matches, err := srv.history.Recent(20)
	if err != nil {
		utils.HandleError(w, http.StatusInternalServerError, "Failed to load match history.")
		return
	}
	utils.HandleSuccess(w, models.SuccessResponse(matches))
}

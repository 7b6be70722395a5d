package main

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/gorilla/websocket"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
	statsWindowDays         = 7
	qrSize                  = 256
)

var uuidPathRe = regexp.MustCompile(`^/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// StatsResponse is the body of /api/stats
type StatsResponse struct {
	Sessions     int            `json:"sessions"`
	Pilots       int            `json:"pilots"`
	Clients      int            `json:"clients"`
	Conns        int            `json:"conns"`
	Online       int            `json:"online"` // signed-in pilots
	ActivePilots int            `json:"active_pilots"`
	Events       map[string]int `json:"events"`
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, clientDir string) *http.ServeMux {
	mux := http.NewServeMux()

	// Serve static files with no-cache so browsers always revalidate
	fs := http.FileServer(http.Dir(clientDir))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		// SPA: a session URL loads the same page as the lobby
		if r.URL.Path == "/" || uuidPathRe.MatchString(r.URL.Path) {
			http.ServeFile(w, r, filepath.Join(clientDir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	}))

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.conns.Acquire(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.conns.Release(ip)
			log.Printf("upgrade error: %v", err)
			return
		}

		client := NewClient(hub, conn, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	mux.HandleFunc("GET /api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		limit := defaultLeaderboardLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxLeaderboardLimit)
		}
		entries := []LeaderboardEntry{}
		if hub.db != nil {
			var err error
			entries, err = hub.db.GetLeaderboard(r.URL.Query().Get("by"), limit)
			if err != nil {
				log.Printf("leaderboard: %v", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}
		writeJSON(w, entries)
	})

	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		resp := StatsResponse{
			Sessions: hub.sessions.Count(),
			Clients:  hub.ClientCount(),
			Conns:    hub.conns.Total(),
			Online:   hub.OnlineCount(),
		}
		_, resp.Pilots = hub.analytics.Live()
		events, err := hub.analytics.EventCounts(statsWindowDays)
		if err != nil {
			log.Printf("stats: %v", err)
		}
		resp.Events = events
		if resp.ActivePilots, err = hub.analytics.ActivePilots(statsWindowDays); err != nil {
			log.Printf("stats: %v", err)
		}
		writeJSON(w, resp)
	})

	// QR code of the session URL so a phone can join by scanning
	mux.HandleFunc("GET /qr/{sid}", func(w http.ResponseWriter, r *http.Request) {
		sid := r.PathValue("sid")
		if hub.sessions.GetSession(sid) == nil {
			http.NotFound(w, r)
			return
		}
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		png, err := qrcode.Encode(scheme+"://"+r.Host+"/"+sid, qrcode.Medium, qrSize)
		if err != nil {
			log.Printf("qr encode: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

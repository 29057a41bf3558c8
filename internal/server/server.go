package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/mkurosawa/kaiji/internal/cluster"
	"github.com/mkurosawa/kaiji/internal/config"
	"github.com/mkurosawa/kaiji/internal/database"
	"github.com/mkurosawa/kaiji/internal/normalize"
	"github.com/mkurosawa/kaiji/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for digests, the watchlist, and the JSON
// feed.
type Server struct {
	cfg   *config.Config
	db    *database.DB
	pipe  *pipeline.Pipeline
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(cfg *config.Config, db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":     renderMarkdown,
		"formatPeriod": database.FormatPeriodDisplay,
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into
	// the clone so each page gets its own content and title blocks.
	pageNames := []string{"index.html", "digest.html", "watchlist.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		cfg:   cfg,
		db:    db,
		pipe:  pipeline.New(cfg, db, nil),
		pages: pages,
		mux:   http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/digest/", s.handleDigest)
	s.mux.HandleFunc("/watchlist", s.handleWatchlist)
	s.mux.HandleFunc("/watchlist/add", s.handleAddWatch)
	s.mux.HandleFunc("/watchlist/remove", s.handleRemoveWatch)
	s.mux.HandleFunc("/api/feed", s.handleFeed)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	digests, err := s.db.GetAllDigests()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Digests": digests,
	})
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	periodID := strings.TrimPrefix(r.URL.Path, "/digest/")
	if periodID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	d, _ := s.db.GetDigest(periodID)

	s.render(w, "digest.html", map[string]any{
		"Digest":   d,
		"PeriodID": periodID,
	})
}

type watchRow struct {
	Ticker   string
	Position float64
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	profile, err := s.db.LoadProfile()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rows := make([]watchRow, 0, len(profile.Watchlist))
	for _, t := range profile.Watchlist {
		rows = append(rows, watchRow{Ticker: t, Position: profile.Positions[t]})
	}

	s.render(w, "watchlist.html", map[string]any{
		"Watchlist": rows,
	})
}

func (s *Server) handleAddWatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/watchlist", http.StatusFound)
		return
	}

	code, ok := normalize.ValidTicker(strings.TrimSpace(r.FormValue("ticker")))
	if ok {
		var position float64
		fmt.Sscanf(strings.TrimSpace(r.FormValue("position")), "%f", &position)
		s.db.AddWatch(code, position)
	}

	http.Redirect(w, r, "/watchlist", http.StatusFound)
}

func (s *Server) handleRemoveWatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/watchlist", http.StatusFound)
		return
	}

	if ticker := strings.TrimSpace(r.FormValue("ticker")); ticker != "" {
		s.db.RemoveWatch(ticker)
	}

	http.Redirect(w, r, "/watchlist", http.StatusFound)
}

// feedItem is the JSON shape of one ranked feed entry.
type feedItem struct {
	ClusterID      string   `json:"cluster_id"`
	Title          string   `json:"title"`
	PrimaryTicker  string   `json:"primary_ticker"`
	Tickers        []string `json:"tickers"`
	Category       string   `json:"category"`
	Impact         string   `json:"impact"`
	PersonalImpact string   `json:"personal_impact"`
	Relevance      int      `json:"relevance"`
	Reasons        []string `json:"reasons"`
	PublishedAt    string   `json:"published_at"`
	Sources        []string `json:"sources"`
	ShouldDeliver  bool     `json:"should_deliver"`
}

// handleFeed returns the ranked personalized feed for a period (today
// by default) under a ranking preset chosen via ?preset=.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	periodID := r.URL.Query().Get("period")
	if periodID == "" {
		periodID = database.GetToday()
	}
	preset := r.URL.Query().Get("preset")
	if preset == "" {
		preset = s.cfg.Ranking.Preset
	}

	feed, err := s.pipe.BuildFeed(periodID, preset, time.Now())
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	items := make([]feedItem, 0, len(feed))
	for _, e := range feed {
		items = append(items, feedItem{
			ClusterID:      e.ID,
			Title:          e.Title,
			PrimaryTicker:  e.PrimaryTicker,
			Tickers:        e.AllTickers,
			Category:       string(e.Category),
			Impact:         string(e.Impact),
			PersonalImpact: string(e.PersonalImpact),
			Relevance:      e.Relevance,
			Reasons:        e.Reasons,
			PublishedAt:    e.PublishedAt.Format(time.RFC3339),
			Sources:        e.Sources,
			ShouldDeliver:  cluster.ShouldDeliver(e.ClusteredEvent),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"period": periodID,
		"preset": preset,
		"events": items,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(cfg *config.Config, db *database.DB, port int) error {
	srv, err := New(cfg, db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}

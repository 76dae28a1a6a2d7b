// Package server is a local web viewer over the event collections:
// browse runs and buckets, read the digest, and mark events reviewed.
package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/janlim/eventscout/internal/collection"
	"github.com/janlim/eventscout/internal/ledger"
	"github.com/janlim/eventscout/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server serves the collection viewer.
type Server struct {
	store *collection.Store
	db    *ledger.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a Server over a collection store and the ledger.
func New(store *collection.Store, db *ledger.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"index.html", "collection.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{store: store, db: db, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/collection/", s.handleCollection)
	s.mux.HandleFunc("/review/", s.handleReview)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	names, err := s.store.List()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var latest *ledger.RunReport
	if s.db != nil {
		latest, _ = s.db.LatestRunReport()
	}

	s.render(w, "index.html", map[string]any{
		"Collections": names,
		"LatestRun":   latest,
	})
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/collection/")
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	c, err := s.store.Open(name)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	digest, _ := os.ReadFile(filepath.Join(c.Dir, report.DigestFile))

	s.render(w, "collection.html", map[string]any{
		"Collection": c,
		"Digest":     string(digest),
	})
}

// handleReview toggles the reviewed flag on one event. Reviewed events
// are protected from being overwritten by later merges.
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/review/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || strings.Contains(parts[0], "..") {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	name, eventID := parts[0], parts[1]

	c, err := s.store.Open(name)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	toggled := false
	for i := range c.Events {
		if c.Events[i].ID == eventID {
			c.Events[i].Reviewed = !c.Events[i].Reviewed
			toggled = true
			break
		}
	}
	if toggled {
		if err := c.Save(); err != nil {
			log.Printf("Saving review toggle for %s/%s: %v", name, eventID, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	http.Redirect(w, r, "/collection/"+name+"#event-"+eventID, http.StatusFound)
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
func Serve(store *collection.Store, db *ledger.DB, port int) error {
	srv, err := New(store, db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}

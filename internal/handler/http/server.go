package http

import (
	"ShortReach-Backend/internal/analytics"
	"ShortReach-Backend/internal/repository"
	"ShortReach-Backend/internal/service"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Server wires the HTTP handlers and routes.
type Server struct {
	linksHandler    *LinksHandler
	redirectHandler *RedirectHandler
	healthHandler   *HealthHandler
	log             *zap.Logger
}

// NewServer creates the HTTP server facade.
func NewServer(
	storage repository.Storage,
	links *service.ShortLinkService,
	processor *analytics.Processor,
	log *zap.Logger,
	baseURL string,
) *Server {
	return &Server{
		linksHandler:    NewLinksHandler(links, log, baseURL),
		redirectHandler: NewRedirectHandler(links, processor, log),
		healthHandler:   NewHealthHandler(storage, processor, log),
		log:             log,
	}
}

// SetupRoutes builds the route table.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.Health)
	mux.HandleFunc("/ready", s.healthHandler.Ready)

	mux.HandleFunc("/api/links", s.handleLinksCollection)
	mux.HandleFunc("/api/links/", s.handleLinksItem)
	mux.HandleFunc("/api/stats/", s.handleStats)

	// Redirect catches everything else; must be registered last.
	mux.HandleFunc("/", s.redirectHandler.HandleRedirect)

	return mux
}

// handleLinksCollection dispatches /api/links by method.
func (s *Server) handleLinksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.linksHandler.CreateLink(w, r)
	case http.MethodGet:
		s.linksHandler.ListLinks(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleLinksItem dispatches /api/links/{id}, /api/links/{id}/refresh and
// /api/links/entity/{entityID}.
func (s *Server) handleLinksItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/links/"), "/")
	parts := strings.Split(rest, "/")

	if len(parts) == 2 && parts[0] == "entity" && parts[1] != "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.linksHandler.ListEntityLinks(w, r, parts[1])
		return
	}

	id, ok := s.linksHandler.pathID(w, "/"+parts[0], "/")
	if !ok {
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.linksHandler.DeactivateLink(w, r, id)
	case len(parts) == 2 && parts[1] == "refresh" && r.Method == http.MethodPost:
		s.linksHandler.RefreshLink(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.linksHandler.GetStats(w, r)
}

package http

import (
	"ShortReach-Backend/internal/analytics"
	"ShortReach-Backend/internal/service"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// RedirectHandler resolves short codes and issues redirects. Click tracking
// is submitted to the async pipeline so it never delays the response.
type RedirectHandler struct {
	links     *service.ShortLinkService
	processor *analytics.Processor
	log       *zap.Logger
}

// NewRedirectHandler creates the redirect handler.
func NewRedirectHandler(links *service.ShortLinkService, processor *analytics.Processor, log *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		links:     links,
		processor: processor,
		log:       log,
	}
}

// HandleRedirect serves GET /{code}.
func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(r.URL.Path, "/")

	if code == "" || strings.ContainsRune(code, '/') ||
		strings.HasPrefix(code, "api") || strings.HasPrefix(code, "health") ||
		strings.HasPrefix(code, "ready") {
		http.NotFound(w, r)
		return
	}

	link, err := h.links.Resolve(r.Context(), code)
	if err != nil {
		h.log.Error("failed to resolve code", zap.String("code", code), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if link == nil {
		// Unknown, deactivated or expired: a normal outcome.
		h.log.Debug("code not found", zap.String("code", code))
		http.NotFound(w, r)
		return
	}

	h.processor.Submit(analytics.ClickJob{
		LinkID: link.ID,
		Code:   link.Code,
		Metadata: service.ClickMetadata{
			UserAgent: r.UserAgent(),
			IPAddress: extractIPAddress(r),
			Referrer:  r.Referer(),
		},
	})

	h.log.Info("redirect",
		zap.String("code", code),
		zap.String("destination", link.DestinationURL))

	http.Redirect(w, r, link.DestinationURL, http.StatusFound)
}

// extractIPAddress pulls the client IP, preferring proxy headers.
func extractIPAddress(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// X-Forwarded-For may carry a comma-separated chain.
		if first, _, found := strings.Cut(ip, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(ip)
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

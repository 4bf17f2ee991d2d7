package portal

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/monitoring"
	"github.com/weighright/portal/pkg/types"
)

// visitorCookie identifies an anonymous landing page visitor
const visitorCookie = "wr_visitor"

// wrap applies the outer middleware chain around the router
func (s *Service) wrap(h http.Handler) http.Handler {
	h = s.securityHeadersMiddleware(h)
	h = handlers.CORS(
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization", "HX-Request", "HX-Target", "HX-Current-URL"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"}),
	)(h)
	h = handlers.CompressHandler(h)
	h = s.forwardedMiddleware(h)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(s.logger),
		handlers.PrintRecoveryStack(true),
	)(h)
}

func monitoringMiddleware(s *Service) mux.MiddlewareFunc {
	return monitoring.NewMonitoringMiddleware(s.metrics, s.tracing, s.logger).HTTPMiddleware
}

// securityHeadersMiddleware adds security headers
func (s *Service) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// adminAuthMiddleware requires a clinician session
func (s *Service) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.clinicianFromRequest(r)
		if err != nil {
			s.logger.Security("admin_unauthorized", clientIP(r), map[string]interface{}{
				"path":   r.URL.Path,
				"reason": err.Error(),
			})
			s.writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), logger.ActorKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitMiddleware applies the per-client request budget
func (s *Service) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.RateLimit.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		key := clientIP(r)
		allowed, err := s.limiter.Allow(key)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !allowed {
			s.logger.WithFields(map[string]interface{}{
				"client_ip": key,
				"path":      r.URL.Path,
			}).Warn("Rate limit exceeded")
			s.writeError(w, types.NewRateLimitError(types.ErrCodeRateLimitExceeded, "rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// forwardedMiddleware applies proxy headers from trusted peers only. Other
// peers have the headers stripped so RemoteAddr stays the TCP peer.
func (s *Service) forwardedMiddleware(next http.Handler) http.Handler {
	proxied := handlers.ProxyHeaders(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.trustedPeer(clientIP(r)) {
			for _, h := range forwardingHeaders {
				r.Header.Del(h)
			}
			next.ServeHTTP(w, r)
			return
		}

		if client := s.forwardedClient(r.Header.Values("X-Forwarded-For")); client != "" {
			r.Header.Set("X-Forwarded-For", client)
		}
		r.Header.Del("X-Real-IP")
		r.Header.Del("Forwarded")
		proxied.ServeHTTP(w, r)
	})
}

var forwardingHeaders = []string{"X-Forwarded-For", "X-Real-IP", "Forwarded", "X-Forwarded-Host", "X-Forwarded-Proto", "X-Forwarded-Scheme"}

// forwardedClient walks the chain from the nearest hop and returns the first
// address not owned by a trusted proxy. Entries left of it are client supplied.
func (s *Service) forwardedClient(values []string) string {
	var hops []string
	for _, v := range values {
		for _, hop := range strings.Split(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	for i := len(hops) - 1; i >= 0; i-- {
		if !s.trustedPeer(hops[i]) {
			return hops[i]
		}
	}
	if len(hops) > 0 {
		return hops[0]
	}
	return ""
}

func (s *Service) trustedPeer(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP is the host part of RemoteAddr
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// visitorID returns the visitor cookie, issuing one on first contact. The
// cookie is reissued on every call so it expires with the promo mark.
func (s *Service) visitorID(w http.ResponseWriter, r *http.Request) string {
	id := uuid.New().String()
	if c, err := r.Cookie(visitorCookie); err == nil && c.Value != "" {
		id = c.Value
	}
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.promo.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

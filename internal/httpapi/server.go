// Package httpapi implements C11: the public signaling API, the control
// API that triggers a cluster reconciliation cycle, and a separate
// status/metrics server. Grounded on the teacher's cmd/ww/server.go
// (gziphandler + autocert dual listener shape, generalized from a
// single combined handler to the spec's split public/control surface).
package httpapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"golang.org/x/crypto/acme/autocert"

	"github.com/VerseEngine/verse-entrance-server/internal/entrance"
	"github.com/VerseEngine/verse-entrance-server/internal/logx"
)

var info, warn, _ = logx.Tagged("httpapi")

// requestTimeout bounds every public API request, per spec.md section 5.
const requestTimeout = 10 * time.Second

// preflightCacheSeconds is the CORS preflight cache duration, spec.md
// section 4.11.
const preflightCacheSeconds = 86400

// Reconciler triggers one cluster reconciliation cycle (internal/cluster's
// Manager.Update, injected so httpapi doesn't import cluster directly).
type Reconciler func(ctx context.Context) error

// Server wires together the public API, control API and status server
// described by spec.md section 4.11.
type Server struct {
	Entrance *entrance.Handler

	UpdateClusterKey string
	Reconcile        Reconciler

	Version          string
	ClientCountFn    func() int32
	PrometheusPrefix string

	HTTPHost string
	NodeHost string // this node's own per-node hostname; may equal HTTPHost or be empty
	UseHTTPS bool
	CertDir  string
}

// publicHandler builds the POST /enter, POST /candidate surface: access
// logging, CORS, gzip and a per-request timeout, in that wrapping order
// (outermost first), per spec.md section 4.11.
func (s *Server) publicHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/enter", s.Entrance.ServeEnter)
	mux.HandleFunc("/candidate", s.Entrance.ServeCandidate)

	var h http.Handler = mux
	h = http.TimeoutHandler(h, requestTimeout, "request timed out")
	h = gziphandler.GzipHandler(h)
	h = corsMiddleware().Handler(h)
	h = accessLogMiddleware(h)
	return h
}

func corsMiddleware() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		MaxAge:           preflightCacheSeconds,
		AllowCredentials: false,
	})
}

// accessLogMiddleware logs "status method uri ua referer x-forwarded-for"
// plus a request-scoped correlation id and, per SPEC_FULL.md's
// supplemented access-log feature, a cf-ipcountry tag when present.
func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := uuid.NewString()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		country := r.Header.Get("cf-ipcountry")
		info("%s %d %s %s ua=%q referer=%q xff=%q country=%q",
			rid, rec.status, r.Method, r.URL.RequestURI(),
			r.UserAgent(), r.Referer(), r.Header.Get("X-Forwarded-For"), country)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ControlHandler serves GET /update-cluster-<key>, per spec.md section
// 4.11. The full path (including the secret) is matched by the caller's
// mux registration; this handler only runs the reconcile cycle.
func (s *Server) ControlHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-transform")
		w.Header().Set("Expires", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))

		ok := true
		if s.Reconcile != nil {
			if err := s.Reconcile(r.Context()); err != nil {
				warn("cluster reconcile failed: %v", err)
				ok = false
			}
		}
		status := http.StatusOK
		if !ok {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]bool{"update": ok})
	})
}

// controlPath builds the undiscoverable control-API route for a given
// shared secret, matching spec.md section 4.11's "/update-cluster-<key>".
func controlPath(key string) string {
	return "/update-cluster-" + key
}

// BuildPublicMux assembles the full public-API handler tree, registering
// the control-API route alongside /enter and /candidate under a single
// host.
func (s *Server) BuildPublicMux() http.Handler {
	public := s.publicHandler()
	mux := http.NewServeMux()
	mux.Handle("/enter", public)
	mux.Handle("/candidate", public)
	if s.UpdateClusterKey != "" {
		mux.Handle(controlPath(s.UpdateClusterKey), s.ControlHandler())
	}
	return mux
}

// StatusHandler serves the separate status/metrics surface of spec.md
// section 4.11: GET / (JSON version + client count) and GET /metrics
// (Prometheus text).
func (s *Server) StatusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"version":      s.Version,
			"client_count": s.clientCount(),
		})
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "%sinstance{version=%q} 1\n", s.PrometheusPrefix, s.Version)
		fmt.Fprintf(w, "%sclient_count %d\n", s.PrometheusPrefix, s.clientCount())
	})
	return mux
}

func (s *Server) clientCount() int32 {
	if s.ClientCountFn == nil {
		return 0
	}
	return s.ClientCountFn()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe runs the public API (HTTP or HTTPS with on-demand ACME
// per spec.md section 4.11) and the separate status server, blocking
// until ctx is canceled. Mirrors the teacher's cmd/ww/server.go dual
// listener, generalized from a single combined handler to the split
// public/control/status surface this spec describes.
func (s *Server) ListenAndServe(ctx context.Context, httpAddr, statusAddr string) error {
	statusSrv := &http.Server{
		Addr:    statusAddr,
		Handler: s.StatusHandler(),
	}
	go func() {
		if err := statusSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			warn("status server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = statusSrv.Close()
	}()

	publicHandler := s.BuildPublicMux()

	if !s.UseHTTPS {
		srv := &http.Server{Addr: httpAddr, Handler: publicHandler}
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("httpapi: serve: %w", err)
		}
		return nil
	}

	hosts := []string{s.HTTPHost}
	if s.NodeHost != "" && s.NodeHost != s.HTTPHost {
		hosts = append(hosts, s.NodeHost)
	}
	m := &autocert.Manager{
		Cache:      autocert.DirCache(s.CertDir),
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(hosts...),
	}
	tlsSrv := &http.Server{
		Addr:      httpAddr,
		Handler:   publicHandler,
		TLSConfig: &tls.Config{GetCertificate: m.GetCertificate, NextProtos: []string{"h2", "http/1.1"}},
	}
	redirectSrv := &http.Server{
		Addr:    httpRedirectAddr(httpAddr),
		Handler: m.HTTPHandler(nil),
	}
	go func() {
		if err := redirectSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			warn("http redirect server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = tlsSrv.Close()
		_ = redirectSrv.Close()
	}()
	if err := tlsSrv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: serve tls: %w", err)
	}
	return nil
}

// httpRedirectAddr derives the plain-HTTP redirect listener address from
// the HTTPS address by replacing its port with :80, whatever port the
// HTTPS address uses.
func httpRedirectAddr(httpsAddr string) string {
	if i := strings.LastIndex(httpsAddr, ":"); i >= 0 {
		return httpsAddr[:i] + ":80"
	}
	return ":80"
}

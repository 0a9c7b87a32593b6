// Package proxy implements the local HTTP reverse proxy (C8): a FLV stream
// rebroadcaster keyed by the session store, and a buffered image fetch that
// bypasses upstream hotlink protection. Routing mirrors proxy.rs's two
// servers (stream proxy, static/image proxy) on one chi.Router.
package proxy

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/imroc/req/v3"

	"github.com/christian-lee/streamcast/internal/model"
	"github.com/christian-lee/streamcast/internal/session"
)

const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Server owns the chi.Router, the session store it reads from, and a
// dedicated upstream HTTP client built per spec §4.8: HTTP/1.1 only, no
// compression, keep-alive, a 4-connection idle pool, and a generous
// 2-hour timeout so long-lived streams aren't cut off mid-broadcast.
type Server struct {
	router   chi.Router
	store    *session.Store
	upstream *req.Client
}

// New builds the router; it does not bind a listener (see Serve).
func New(store *session.Store) *Server {
	upstream := req.C().
		SetProxy(nil).
		DisableCompression().
		SetTLSHandshakeTimeout(10 * time.Second).
		SetTimeout(2 * time.Hour)
	upstream.Transport.MaxIdleConnsPerHost = 4
	upstream.Transport.IdleConnTimeout = 60 * time.Second
	upstream.EnableForceHTTP1()

	s := &Server{
		router:   chi.NewRouter(),
		store:    store,
		upstream: upstream,
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(permissiveCORS)
	s.router.Get("/live/{platform}/{roomID}", s.handleLive)
	s.router.Get("/image", s.handleImage)

	return s
}

func permissiveCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve binds addr and blocks until the HTTP server stops, returning its
// error. A bind
// failure whose underlying cause is "address already in use" is treated as
// success (idempotent: another instance of this process is already
// proxying), matching proxy.rs's AddrInUse carve-out.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if isAddrInUse(err) {
			slog.Warn("proxy port already bound, assuming another instance is serving", "addr", addr)
			return nil
		}
		return err
	}

	httpServer := &http.Server{
		Handler:     s.router,
		IdleTimeout: 120 * time.Second,
	}
	return httpServer.Serve(ln)
}

func isAddrInUse(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "address already in use")
	}
	return false
}

// handleLive streams GET /live/{platform}/{room_id}.flv byte-for-byte from
// the upstream URL currently recorded for that session, with conditional
// Referer/Origin headers for platforms that hotlink-protect their CDNs.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	roomID := strings.TrimSuffix(chi.URLParam(r, "roomID"), ".flv")

	upstreamURL, ok := s.store.Get(model.SessionKey{Platform: model.Platform(platform), RoomID: roomID})
	if !ok || upstreamURL == "" {
		http.Error(w, "stream url for "+platform+"/"+roomID+" is not set", http.StatusNotFound)
		return
	}

	req := s.upstream.R().SetContext(r.Context()).
		SetHeader("User-Agent", desktopUA).
		SetHeader("Accept", "video/x-flv,application/octet-stream,*/*").
		SetHeader("Range", "bytes=0-").
		SetHeader("Connection", "keep-alive")
	applyHotlinkHeaders(req, upstreamURL)

	resp, err := req.Get(upstreamURL)
	if err != nil {
		http.Error(w, "error connecting to upstream stream: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	if !resp.IsSuccessState() {
		http.Error(w, "upstream stream request failed", resp.StatusCode)
		return
	}

	w.Header().Set("Content-Type", "video/x-flv")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Debug("proxy stream copy ended", "platform", platform, "room_id", roomID, "err", err)
	}
}

// handleImage buffers an upstream image fully before replying, avoiding the
// chunked-transfer early-EOF proxy.rs's comment calls out on some clients.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "missing url query parameter", http.StatusBadRequest)
		return
	}

	req := s.upstream.R().SetContext(r.Context()).
		SetHeader("User-Agent", desktopUA).
		SetHeader("Accept", "image/avif,image/webp,image/apng,image/*;q=0.8,*/*;q=0.5")
	applyHotlinkHeaders(req, url)

	resp, err := req.Get(url)
	if err != nil {
		http.Error(w, "error connecting to upstream image: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	if !resp.IsSuccessState() {
		http.Error(w, "upstream image request failed", resp.StatusCode)
		return
	}

	body := resp.Bytes()
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// applyHotlinkHeaders sets per-platform Referer/Origin so CDN hotlink
// protection doesn't reject the proxy's own fetch, per spec §4.8 and
// proxy.rs's per-domain header table.
func applyHotlinkHeaders(req *req.Request, targetURL string) {
	switch {
	case strings.Contains(targetURL, "hdslb.com"), strings.Contains(targetURL, "bilivideo"), strings.Contains(targetURL, "bilibili.com"):
		req.SetHeader("Referer", "https://live.bilibili.com/").SetHeader("Origin", "https://live.bilibili.com")
	case strings.Contains(targetURL, "huya.com"), strings.Contains(targetURL, "hy-cdn.com"), strings.Contains(targetURL, "huyaimg.com"):
		req.SetHeader("Referer", "https://www.huya.com/").SetHeader("Origin", "https://www.huya.com")
	case strings.Contains(targetURL, "douyin"), strings.Contains(targetURL, "douyinpic.com"):
		req.SetHeader("Referer", "https://www.douyin.com/")
	}
}

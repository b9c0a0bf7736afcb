package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/j-veylop/audit-dashboard-tui/internal/logger"
)

// Navigator opens a URL the user has to visit.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target string) error

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, target string) error { return f(ctx, target) }

func init() {
	// The terminal belongs to the UI; browser launcher output would corrupt it.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// BrowserNavigator opens URLs in the system browser.
type BrowserNavigator struct{}

// Navigate implements Navigator.
func (BrowserNavigator) Navigate(_ context.Context, target string) error {
	return browser.OpenURL(target)
}

const callbackPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Audit Dashboard</title></head>
<body style="font-family:sans-serif;margin:3em">
<h3>Sign-in response received.</h3>
<p>You can close this window and return to the terminal.</p>
</body></html>`

// LoopbackNavigator opens the system browser and receives the provider's
// redirect on the loopback redirect URI. Each received response URL is
// delivered on Callbacks.
type LoopbackNavigator struct {
	redirect  *url.URL
	open      func(string) error
	callbacks chan string

	mu     sync.Mutex
	server *http.Server
}

// NewLoopbackNavigator creates a navigator for a loopback redirect URI.
func NewLoopbackNavigator(redirectURI string) (*LoopbackNavigator, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("identity: invalid redirect uri: %w", err)
	}
	if !IsLoopback(u) {
		return nil, fmt.Errorf("identity: redirect uri %q is not a loopback address", redirectURI)
	}
	return &LoopbackNavigator{
		redirect:  u,
		open:      browser.OpenURL,
		callbacks: make(chan string, 1),
	}, nil
}

// Callbacks delivers full response URLs received on the redirect URI.
func (n *LoopbackNavigator) Callbacks() <-chan string { return n.callbacks }

// Navigate starts the listener if needed, then opens target.
func (n *LoopbackNavigator) Navigate(_ context.Context, target string) error {
	if err := n.listen(); err != nil {
		return err
	}
	return n.open(target)
}

func (n *LoopbackNavigator) listen() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.server != nil {
		return nil
	}

	ln, err := net.Listen("tcp", n.redirect.Host)
	if err != nil {
		return fmt.Errorf("identity: listen on %s: %w", n.redirect.Host, err)
	}

	path := n.redirect.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, n.handle)

	n.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("loopback listener stopped", "error", err)
		}
	}(n.server)
	logger.Debug("loopback listener started", "addr", ln.Addr().String())
	return nil
}

func (n *LoopbackNavigator) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("code") == "" && q.Get("error") == "" {
		http.NotFound(w, r)
		return
	}

	full := *n.redirect
	full.Path = r.URL.Path
	full.RawQuery = r.URL.RawQuery

	select {
	case n.callbacks <- full.String():
	default:
		logger.Warn("dropping redirect response, previous one not consumed")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, callbackPage)
}

// Close stops the listener.
func (n *LoopbackNavigator) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := n.server.Shutdown(ctx)
	n.server = nil
	return err
}

// IsLoopback reports whether u points at the local machine.
func IsLoopback(u *url.URL) bool {
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// IsSecureContext reports whether a redirect URI is acceptable for a
// public client: https, or http on a loopback address.
func IsSecureContext(redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "https":
		return u.Host != ""
	case "http":
		return IsLoopback(u)
	default:
		return false
	}
}

package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gridwatch/gridwatch/internal/config"
	"github.com/gridwatch/gridwatch/internal/grid"
	"github.com/gridwatch/gridwatch/pkg/wire"
)

// Prober talks to other grid members over their HTTP API. It is safe for
// concurrent use; the underlying client reuses connections across poll
// cycles.
type Prober struct {
	client *http.Client
	secret string
	self   string
}

// New builds a Prober. timeout bounds every single call; self and version
// form the User-Agent peers see.
func New(cfg config.ClientConfig, secret, self, version string, timeout time.Duration) (*Prober, error) {
	client, err := buildHTTPClient(cfg, self, version, timeout)
	if err != nil {
		return nil, fmt.Errorf("probe: build http client: %w", err)
	}
	return &Prober{client: client, secret: secret, self: self}, nil
}

// Probe checks whether peer answers its poll endpoint. Any well-formed
// 200 response is proof of life. A name mismatch is logged but still
// counts as success, since the host is demonstrably up and the local
// peer list may simply be stale.
func (p *Prober) Probe(ctx context.Context, peer grid.Peer) error {
	var status wire.StatusResponse
	if err := p.getJSON(ctx, peerURL(peer, "/poll/", p.secret), &status); err != nil {
		return err
	}
	if status.Name != peer.Name {
		slog.Warn("probe: peer identifies under a different name, check the peer list",
			"peer", peer.Name, "reported", status.Name)
	}
	return nil
}

// Opinion asks responder for its view of suspect. The answer counts only
// if the responder echoes its own expected name; a mismatch, a non-200
// status or an unknown opinion value all make the responder unreachable
// as far as quorum is concerned.
func (p *Prober) Opinion(ctx context.Context, responder grid.Peer, suspect string) (string, error) {
	var op wire.OpinionResponse
	if err := p.getJSON(ctx, peerURL(responder, "/opinion/", p.secret, suspect), &op); err != nil {
		return "", err
	}
	if op.Responder != responder.Name {
		return "", fmt.Errorf("probe: opinion from %q signed %q", responder.Name, op.Responder)
	}
	switch op.Opinion {
	case wire.StatusAlive, wire.StatusDying, wire.StatusDead:
		return op.Opinion, nil
	default:
		return "", fmt.Errorf("probe: unknown opinion %q from %q", op.Opinion, responder.Name)
	}
}

// BroadcastSilence pushes a silence to one peer. Receivers deduplicate by
// id, so re-sending the same silence is safe.
func (p *Prober) BroadcastSilence(ctx context.Context, peer grid.Peer, sl wire.SilenceBroadcastRequest) error {
	body, err := json.Marshal(sl)
	if err != nil {
		return fmt.Errorf("probe: encode silence: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		peerURL(peer, "/silence-broadcast/", p.secret), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("probe: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe: http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("probe: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// CheckConnectivity reports whether this node's own uplink works by
// fetching url. Any completed HTTP exchange counts; without an uplink
// every probe would fail and the node would wrongly suspect the whole
// grid.
func (p *Prober) CheckConnectivity(ctx context.Context, checkURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// getJSON performs a GET and decodes the JSON body into out.
func (p *Prober) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// peerURL joins a peer's base address with a route prefix and
// path-escaped segments.
func peerURL(peer grid.Peer, prefix string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(peer.Address, "/"))
	b.WriteString(prefix)
	for i, s := range segments {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// identRoundTripper stamps every outgoing request with this node's
// identity so peers can tell who is probing them.
type identRoundTripper struct {
	base      http.RoundTripper
	userAgent string
}

func (t *identRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the grid's TLS settings.
func buildHTTPClient(cfg config.ClientConfig, self, version string, timeout time.Duration) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if cfg.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs found in ca file %q", cfg.TLS.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	transport := &identRoundTripper{
		base:      &http.Transport{TLSClientConfig: tlsCfg},
		userAgent: fmt.Sprintf("gridwatch/%s/%s", version, self),
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

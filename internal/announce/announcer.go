package announce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gridwatch/gridwatch/internal/config"
	"github.com/gridwatch/gridwatch/internal/grid"
	"github.com/gridwatch/gridwatch/internal/health"
)

const (
	deliveryTimeout = 10 * time.Second

	// maxSentIDs bounds the dedup set. Old ids are evicted first; an id
	// can only reappear after hundreds of later transitions, at which
	// point a duplicate page beats unbounded memory.
	maxSentIDs = 512
)

// Announcer delivers announcements over the configured channel with an
// at-most-once guarantee per transition event.
//
// Announcer is safe for concurrent use.
type Announcer struct {
	cfg         config.AnnounceConfig
	self        string
	telegramAPI string

	mu    sync.Mutex
	sent  map[string]bool
	order []string // insertion order of sent ids, oldest first

	client *http.Client
}

// New creates an Announcer for this node.
func New(cfg config.AnnounceConfig, self string) *Announcer {
	return &Announcer{
		cfg:         cfg,
		self:        self,
		telegramAPI: "https://api.telegram.org",
		sent:        make(map[string]bool),
		client:      &http.Client{Timeout: deliveryTimeout},
	}
}

// Announce delivers the announcement for ev about target. The event id
// is marked handled before the attempt starts, so a failed delivery is
// reported but never retried: a possibly lost notification is preferred
// over paging somebody twice for the same transition.
func (a *Announcer) Announce(ev health.TransitionEvent, target grid.Peer) error {
	a.mu.Lock()
	if a.sent[ev.ID] {
		a.mu.Unlock()
		slog.Debug("announce: event already handled", "event", ev.ID)
		return nil
	}
	a.remember(ev.ID)
	a.mu.Unlock()

	msg := a.message(ev, target)
	mode := a.mode()

	var err error
	switch mode {
	case "telegram":
		err = a.sendTelegram(msg)
	case "slack":
		err = a.sendSlack(msg)
	case "webhook":
		err = a.sendWebhook(ev, msg)
	default:
		slog.Error("GRID ANNOUNCEMENT", "message", msg)
		return nil
	}

	if err != nil {
		return fmt.Errorf("announce: %s delivery: %w", mode, err)
	}
	slog.Info("announce: delivered", "event", ev.ID, "mode", mode, "peer", ev.Peer)
	return nil
}

// remember records id in the bounded dedup set. Caller holds a.mu.
func (a *Announcer) remember(id string) {
	if len(a.order) >= maxSentIDs {
		delete(a.sent, a.order[0])
		a.order = a.order[1:]
	}
	a.sent[id] = true
	a.order = append(a.order, id)
}

func (a *Announcer) mode() string {
	if a.cfg.Mode == "" {
		return "log"
	}
	return a.cfg.Mode
}

// message renders the announcement text.
func (a *Announcer) message(ev health.TransitionEvent, target grid.Peer) string {
	var b strings.Builder
	at := ev.At.UTC().Format(time.RFC3339)
	if ev.Direction() == "recovered" {
		fmt.Fprintf(&b, "Grid announcement, `%s` has fortunately returned at %s, announced by: `%s`",
			ev.Peer, at, a.self)
	} else {
		fmt.Fprintf(&b, "Grid announcement, `%s` has unfortunately died at %s, announced by: `%s`",
			ev.Peer, at, a.self)
	}
	if target.NotifyHandle != "" {
		fmt.Fprintf(&b, " - @%s", strings.TrimPrefix(target.NotifyHandle, "@"))
	}
	return b.String()
}

func (a *Announcer) sendTelegram(msg string) error {
	token := a.cfg.Telegram.Token()
	if token == "" {
		return fmt.Errorf("bot token from %s resolves empty", a.cfg.Telegram.TokenEnv)
	}
	body, _ := json.Marshal(map[string]interface{}{
		"chat_id": a.cfg.Telegram.ChatID,
		"text":    msg,
	})
	return a.post(a.telegramAPI+"/bot"+url.PathEscape(token)+"/sendMessage", body)
}

func (a *Announcer) sendSlack(msg string) error {
	hook := a.cfg.Slack.URL()
	if hook == "" {
		return fmt.Errorf("slack url from %s resolves empty", a.cfg.Slack.URLEnv)
	}
	body, _ := json.Marshal(map[string]string{"text": msg})
	return a.post(hook, body)
}

func (a *Announcer) sendWebhook(ev health.TransitionEvent, msg string) error {
	hook := a.cfg.Webhook.URL()
	if hook == "" {
		return fmt.Errorf("webhook url from %s resolves empty", a.cfg.Webhook.URLEnv)
	}
	body, _ := json.Marshal(map[string]interface{}{
		"peer":         ev.Peer,
		"direction":    ev.Direction(),
		"at":           ev.At.UTC().Format(time.RFC3339),
		"announced_by": a.self,
		"message":      msg,
	})
	return a.post(hook, body)
}

func (a *Announcer) post(target string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("channel returned HTTP %d", resp.StatusCode)
	}
	return nil
}

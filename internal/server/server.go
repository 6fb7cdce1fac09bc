package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gridwatch/gridwatch/internal/grid"
	"github.com/gridwatch/gridwatch/internal/health"
	"github.com/gridwatch/gridwatch/internal/journal"
	"github.com/gridwatch/gridwatch/internal/metrics"
	"github.com/gridwatch/gridwatch/internal/silence"
	"github.com/gridwatch/gridwatch/pkg/wire"
)

// journalLimit caps how many transitions GET /journal/{key} returns.
const journalLimit = 100

// Deps carries everything the HTTP surface reads from or writes to.
type Deps struct {
	Roster   *grid.Roster
	Engine   *health.Engine
	Silences *silence.Book
	Journal  *journal.Journal // may be nil when no journal path is configured
	Stream   http.Handler     // WebSocket hub; may be nil in tests
	Secret   string
	Version  string
	UIDir    string // serve the dashboard from this directory when non-empty
}

// Handler is the HTTP handler for every gridwatch endpoint. All routes except
// the bare banner carry the shared key as a path segment.
type Handler struct {
	deps   Deps
	router *mux.Router
}

// New creates a Handler and registers all routes.
func New(deps Deps) http.Handler {
	h := &Handler{deps: deps, router: mux.NewRouter()}

	h.router.HandleFunc("/", h.banner).Methods(http.MethodGet)
	h.router.HandleFunc("/poll/{key}", h.withKey(h.poll)).Methods(http.MethodGet)
	h.router.HandleFunc("/opinion/{key}/{peer}", h.withKey(h.opinion)).Methods(http.MethodGet)
	h.router.HandleFunc("/grid/{key}", h.withKey(h.grid)).Methods(http.MethodGet)
	h.router.HandleFunc("/journal/{key}", h.withKey(h.journal)).Methods(http.MethodGet)
	h.router.HandleFunc("/metrics/{key}", h.withKey(h.metrics)).Methods(http.MethodGet)
	h.router.HandleFunc("/silence/{key}/{until}", h.withKey(h.silence)).Methods(http.MethodGet)
	h.router.HandleFunc("/silence/{key}/{until}/{target}", h.withKey(h.silence)).Methods(http.MethodGet)
	h.router.HandleFunc("/silence-broadcast/{key}", h.withKey(h.silenceBroadcast)).Methods(http.MethodPost)
	h.router.HandleFunc("/ws/{key}", h.withKey(h.stream)).Methods(http.MethodGet)

	if deps.UIDir != "" {
		h.router.PathPrefix("/webui/").Handler(
			http.StripPrefix("/webui/", spaHandler(deps.UIDir)))
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// withKey rejects requests whose {key} segment does not match the grid secret.
func (h *Handler) withKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["key"] != h.deps.Secret {
			slog.Warn("api: rejected request with bad key",
				"path", r.URL.Path, "remote", r.RemoteAddr)
			jsonErr(w, http.StatusUnauthorized, "invalid key")
			return
		}
		next(w, r)
	}
}

// --- route handlers ---------------------------------------------------------

// banner returns GET / — name and version, no key required. Peers probe the
// keyed variant; this one is for humans and load balancers.
func (h *Handler) banner(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, wire.StatusResponse{
		Name:    h.deps.Roster.Self(),
		Version: h.deps.Version,
	})
}

// poll returns GET /poll/{key} — the probe target. Any 200 from here counts
// as this node being alive; callers also check the name against the roster.
func (h *Handler) poll(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, wire.StatusResponse{
		Name:    h.deps.Roster.Self(),
		Version: h.deps.Version,
	})
}

// opinion returns GET /opinion/{key}/{peer} — this node's current view of
// one grid member, used by peers gathering corroboration.
func (h *Handler) opinion(w http.ResponseWriter, r *http.Request) {
	peer := mux.Vars(r)["peer"]
	st, ok := h.deps.Engine.Opinion(peer)
	if !ok {
		jsonErr(w, http.StatusNotFound, "unknown peer")
		return
	}
	jsonResp(w, http.StatusOK, wire.OpinionResponse{
		Responder: h.deps.Roster.Self(),
		Peer:      peer,
		Opinion:   string(st),
	})
}

// grid returns GET /grid/{key} — this node's view of the whole grid.
func (h *Handler) grid(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, BuildGrid(h.deps.Engine.Snapshot()))
}

// journal returns GET /journal/{key} — recent transitions, newest first.
func (h *Handler) journal(w http.ResponseWriter, r *http.Request) {
	resp := wire.JournalResponse{Events: []wire.EventResponse{}}
	if h.deps.Journal == nil {
		jsonResp(w, http.StatusOK, resp)
		return
	}

	entries, err := h.deps.Journal.Recent(journalLimit)
	if err != nil {
		slog.Warn("api: journal read failed", "error", err)
		jsonErr(w, http.StatusInternalServerError, "journal read failed")
		return
	}
	for _, e := range entries {
		resp.Events = append(resp.Events, toEventResponse(e))
	}
	jsonResp(w, http.StatusOK, resp)
}

// metrics returns GET /metrics/{key} — the grid view in Prometheus text
// exposition format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", metrics.ContentType)
	snap := h.deps.Engine.Snapshot()
	if err := metrics.Render(w, snap, h.deps.Roster.Self(), h.deps.Version); err != nil {
		slog.Warn("api: render metrics", "error", err)
	}
}

// silence handles GET /silence/{key}/{until} and
// GET /silence/{key}/{until}/{target}. Until is either unix seconds or a
// duration like 90m; target defaults to this node.
func (h *Handler) silence(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	target := vars["target"]
	if target == "" {
		target = h.deps.Roster.Self()
	}
	if target != h.deps.Roster.Self() && !h.deps.Roster.Has(target) {
		jsonErr(w, http.StatusNotFound, "unknown peer")
		return
	}

	until, err := parseUntil(vars["until"], time.Now())
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "bad until: use unix seconds or a duration like 90m")
		return
	}

	s := h.deps.Silences.Add(target, until)
	slog.Info("api: silence added", "peer", s.Peer, "until", s.Until)
	jsonResp(w, http.StatusOK, wire.SilenceResponse{
		Peer:  s.Peer,
		Until: s.Until.UTC().Format(time.RFC3339),
	})
}

// silenceBroadcast handles POST /silence-broadcast/{key} — a silence pushed
// over from another grid member. Duplicate IDs are merged away.
func (h *Handler) silenceBroadcast(w http.ResponseWriter, r *http.Request) {
	var req wire.SilenceBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "bad request body")
		return
	}
	if req.Peer == "" {
		jsonErr(w, http.StatusBadRequest, "peer required")
		return
	}
	until, err := time.Parse(time.RFC3339, req.Until)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "bad until timestamp")
		return
	}

	if h.deps.Silences.Merge(req.ID, req.Peer, until) {
		slog.Info("api: silence received", "peer", req.Peer, "until", until, "id", req.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// stream hands GET /ws/{key} to the WebSocket hub.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	if h.deps.Stream == nil {
		jsonErr(w, http.StatusNotFound, "stream disabled")
		return
	}
	h.deps.Stream.ServeHTTP(w, r)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

type errorResponse struct {
	Error string `json:"error"`
}

// BuildGrid maps a health snapshot to its wire representation. The WebSocket
// hub uses the same mapping, so both surfaces report identical state.
func BuildGrid(snap health.GridSnapshot) wire.GridResponse {
	resp := wire.GridResponse{
		Nodes:      make([]wire.GridNodeResponse, 0, len(snap.Nodes)),
		AliveNodes: snap.Alive,
		DyingNodes: snap.Dying,
		DeadNodes:  snap.Dead,
		TotalNodes: snap.Total,
	}
	for _, n := range snap.Nodes {
		node := wire.GridNodeResponse{Name: n.Name, Status: string(n.Status)}
		if !n.Since.IsZero() {
			node.Since = n.Since.UTC().Format(time.RFC3339)
		}
		if !n.LastPoll.IsZero() {
			node.LastPoll = n.LastPoll.UTC().Format(time.RFC3339)
		}
		if !n.LastSuccess.IsZero() {
			node.LastSuccess = n.LastSuccess.UTC().Format(time.RFC3339)
		}
		resp.Nodes = append(resp.Nodes, node)
	}
	return resp
}

func toEventResponse(e journal.Entry) wire.EventResponse {
	return wire.EventResponse{
		ID:          e.ID,
		Peer:        e.Peer,
		From:        e.From,
		To:          e.To,
		At:          e.At.UTC().Format(time.RFC3339),
		ConfirmedBy: e.ConfirmedBy,
	}
}

// parseUntil reads a deadline from a path segment: a bare integer is unix
// seconds, anything else must parse as a duration relative to now.
func parseUntil(raw string, now time.Time) (time.Time, error) {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("server: parse until %q: %w", raw, err)
	}
	return now.Add(d), nil
}

// spaHandler serves the pre-built dashboard. Unknown paths fall back to
// index.html so client-side routing works.
func spaHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(filepath.Join(dir, r.URL.Path)); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}

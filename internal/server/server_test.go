package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gridwatch/gridwatch/internal/grid"
	"github.com/gridwatch/gridwatch/internal/health"
	"github.com/gridwatch/gridwatch/internal/journal"
	"github.com/gridwatch/gridwatch/internal/server"
	"github.com/gridwatch/gridwatch/internal/silence"
)

const testKey = "sesame"

// --- test helpers -----------------------------------------------------------

type fixture struct {
	handler  http.Handler
	engine   *health.Engine
	silences *silence.Book
}

func newFixture(t *testing.T, opts ...func(*server.Deps)) *fixture {
	t.Helper()

	roster := grid.New("berlin", []grid.Peer{
		{Name: "amsterdam", Address: "http://amsterdam:7070"},
		{Name: "berlin", Address: "http://berlin:7070"},
		{Name: "oslo", Address: "http://oslo:7070"},
	})
	engine := health.NewEngine(roster)
	silences := silence.NewBook()

	deps := server.Deps{
		Roster:   roster,
		Engine:   engine,
		Silences: silences,
		Secret:   testKey,
		Version:  "1.2.3",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &fixture{
		handler:  server.New(deps),
		engine:   engine,
		silences: silences,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- banner and key gate ----------------------------------------------------

func TestBanner_NoKeyRequired(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler, "/")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)

	if resp["name"] != "berlin" {
		t.Errorf("name: got %v, want berlin", resp["name"])
	}
	if resp["version"] != "1.2.3" {
		t.Errorf("version: got %v, want 1.2.3", resp["version"])
	}
}

func TestKeyGate_RejectsBadKey(t *testing.T) {
	f := newFixture(t)

	paths := []string{
		"/poll/wrong",
		"/opinion/wrong/oslo",
		"/grid/wrong",
		"/journal/wrong",
		"/metrics/wrong",
		"/silence/wrong/90m",
		"/silence/wrong/90m/oslo",
		"/ws/wrong",
	}
	for _, path := range paths {
		rr := get(t, f.handler, path)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s: status: got %d, want 401", path, rr.Code)
		}
		var resp map[string]interface{}
		decode(t, rr, &resp)
		if resp["error"] != "invalid key" {
			t.Errorf("%s: error: got %v, want invalid key", path, resp["error"])
		}
	}

	rr := post(t, f.handler, "/silence-broadcast/wrong", `{}`)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("silence-broadcast: status: got %d, want 401", rr.Code)
	}
}

func TestPoll_ValidKey(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler, "/poll/"+testKey)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["name"] != "berlin" {
		t.Errorf("name: got %v, want berlin", resp["name"])
	}
}

// --- /opinion ---------------------------------------------------------------

func TestOpinion_SelfIsAlive(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler, "/opinion/"+testKey+"/berlin")

	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["responder"] != "berlin" {
		t.Errorf("responder: got %v, want berlin", resp["responder"])
	}
	if resp["peer"] != "berlin" {
		t.Errorf("peer: got %v, want berlin", resp["peer"])
	}
	if resp["opinion"] != "alive" {
		t.Errorf("opinion: got %v, want alive", resp["opinion"])
	}
}

func TestOpinion_ReflectsLocalView(t *testing.T) {
	f := newFixture(t)
	f.engine.ReportFailure("oslo", time.Now())

	rr := get(t, f.handler, "/opinion/"+testKey+"/oslo")
	var resp map[string]interface{}
	decode(t, rr, &resp)

	if resp["opinion"] != "dying" {
		t.Errorf("opinion: got %v, want dying", resp["opinion"])
	}
}

func TestOpinion_UnknownPeer(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler, "/opinion/"+testKey+"/stranger")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

// --- /grid ------------------------------------------------------------------

func TestGrid_CountsAndNodes(t *testing.T) {
	f := newFixture(t)
	f.engine.ReportFailure("oslo", time.Now())

	rr := get(t, f.handler, "/grid/"+testKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var resp map[string]interface{}
	decode(t, rr, &resp)

	if resp["total_nodes"].(float64) != 3 {
		t.Errorf("total_nodes: got %v, want 3", resp["total_nodes"])
	}
	if resp["alive_nodes"].(float64) != 2 {
		t.Errorf("alive_nodes: got %v, want 2", resp["alive_nodes"])
	}
	if resp["dying_nodes"].(float64) != 1 {
		t.Errorf("dying_nodes: got %v, want 1", resp["dying_nodes"])
	}

	nodes := resp["nodes"].([]interface{})
	if len(nodes) != 3 {
		t.Fatalf("nodes: got %d, want 3", len(nodes))
	}
	// Name-sorted: amsterdam, berlin, oslo.
	first := nodes[0].(map[string]interface{})
	if first["name"] != "amsterdam" {
		t.Errorf("nodes[0]: got %v, want amsterdam", first["name"])
	}
	self := nodes[1].(map[string]interface{})
	if self["status"] != "alive" {
		t.Errorf("self status: got %v, want alive", self["status"])
	}
}

// --- /journal ---------------------------------------------------------------

func TestJournal_NoJournalConfigured(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler, "/journal/"+testKey)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	events := resp["events"].([]interface{})
	if len(events) != 0 {
		t.Errorf("events: got %d, want 0", len(events))
	}
}

func TestJournal_NewestFirst(t *testing.T) {
	j, err := journal.Open(t.TempDir() + "/journal")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, ev := range []health.TransitionEvent{
		{ID: "oslo:alive>dying:1", Peer: "oslo", From: health.StatusAlive, To: health.StatusDying},
		{ID: "oslo:dying>dead:2", Peer: "oslo", From: health.StatusDying, To: health.StatusDead},
	} {
		ev.At = base.Add(time.Duration(i) * time.Minute)
		if err := j.Append(ev); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	f := newFixture(t, func(d *server.Deps) { d.Journal = j })
	rr := get(t, f.handler, "/journal/"+testKey)

	var resp map[string]interface{}
	decode(t, rr, &resp)
	events := resp["events"].([]interface{})
	if len(events) != 2 {
		t.Fatalf("events: got %d, want 2", len(events))
	}
	newest := events[0].(map[string]interface{})
	if newest["id"] != "oslo:dying>dead:2" {
		t.Errorf("events[0].id: got %v, want oslo:dying>dead:2", newest["id"])
	}
}

// --- /metrics ---------------------------------------------------------------

func TestMetrics_TextExposition(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler, "/metrics/"+testKey)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "gridwatch_grid_size") {
		t.Errorf("body missing gridwatch_grid_size:\n%s", body)
	}
	if !strings.Contains(body, `gridwatch_peer_up{peer="oslo"}`) {
		t.Errorf("body missing per-peer gauge:\n%s", body)
	}
}

// --- /silence ---------------------------------------------------------------

func TestSilence_DurationDefaultsToSelf(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler, "/silence/"+testKey+"/90m")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["peer"] != "berlin" {
		t.Errorf("peer: got %v, want berlin", resp["peer"])
	}
	if !f.silences.Silenced("berlin", time.Now()) {
		t.Error("berlin should be silenced")
	}
}

func TestSilence_ExplicitTarget(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler, "/silence/"+testKey+"/2h/oslo")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["peer"] != "oslo" {
		t.Errorf("peer: got %v, want oslo", resp["peer"])
	}
	if !f.silences.Silenced("oslo", time.Now()) {
		t.Error("oslo should be silenced")
	}
	if f.silences.Silenced("amsterdam", time.Now()) {
		t.Error("amsterdam should not be silenced")
	}
}

func TestSilence_UnixSeconds(t *testing.T) {
	f := newFixture(t)
	until := time.Now().Add(time.Hour).Unix()
	rr := get(t, f.handler, fmt.Sprintf("/silence/%s/%d", testKey, until))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	want := time.Unix(until, 0).UTC().Format(time.RFC3339)
	if resp["until"] != want {
		t.Errorf("until: got %v, want %s", resp["until"], want)
	}
}

func TestSilence_UnknownTarget(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler, "/silence/"+testKey+"/90m/stranger")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

func TestSilence_BadUntil(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler, "/silence/"+testKey+"/soonish")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

// --- /silence-broadcast -----------------------------------------------------

func TestSilenceBroadcast_MergesOnce(t *testing.T) {
	f := newFixture(t)
	until := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(`{"id":42,"peer":"oslo","until":%q}`, until)

	rr := post(t, f.handler, "/silence-broadcast/"+testKey, body)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204 (body: %s)", rr.Code, rr.Body.String())
	}
	if !f.silences.Silenced("oslo", time.Now()) {
		t.Error("oslo should be silenced")
	}

	// Same ID again is a no-op, still 204.
	rr = post(t, f.handler, "/silence-broadcast/"+testKey, body)
	if rr.Code != http.StatusNoContent {
		t.Errorf("repeat status: got %d, want 204", rr.Code)
	}

	// Merged silences are already broadcast, nothing pending.
	if n := len(f.silences.Pending()); n != 0 {
		t.Errorf("pending: got %d, want 0", n)
	}
}

func TestSilenceBroadcast_BadBody(t *testing.T) {
	f := newFixture(t)

	rr := post(t, f.handler, "/silence-broadcast/"+testKey, `{"id":1,"peer":"","until":"x"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty peer: status: got %d, want 400", rr.Code)
	}

	rr = post(t, f.handler, "/silence-broadcast/"+testKey, `not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad json: status: got %d, want 400", rr.Code)
	}
}

// --- /ws --------------------------------------------------------------------

func TestStream_DisabledWithoutHub(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.handler, "/ws/"+testKey)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
}

package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-panel/internal/auth"
	"github.com/unclebandit/campaign-panel/internal/controller"
	"github.com/unclebandit/campaign-panel/internal/handler"
	"github.com/unclebandit/campaign-panel/internal/hub"
	"github.com/unclebandit/campaign-panel/internal/model"
	"github.com/unclebandit/campaign-panel/internal/repository"
	"github.com/unclebandit/campaign-panel/internal/server"
	"github.com/unclebandit/campaign-panel/internal/service"
)

const workerToken = "worker-token"

// MockDispatcher counts handoffs
type MockDispatcher struct {
	mu     sync.Mutex
	starts int
}

func (m *MockDispatcher) Dispatch(ctx context.Context, name string, leads []model.LeadInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	return nil
}

func (m *MockDispatcher) Stop(ctx context.Context, name string) error { return nil }

type api struct {
	handler http.Handler
	tokens  *auth.Tokens
	hub     *hub.Hub
	disp    *MockDispatcher
}

func newAPI() *api {
	log := zerolog.Nop()
	h := hub.New(log)
	tokens := &auth.Tokens{Secret: []byte("jwt-secret"), TTL: 8 * time.Hour}
	disp := &MockDispatcher{}
	svc := &service.CampaignService{
		Store:         repository.NewProgressStore(h, log),
		Observers:     h,
		Dispatcher:    disp,
		WorkerTimeout: time.Second,
		Log:           log,
	}

	r := server.NewRouter(server.Deps{
		Auth: &controller.AuthController{
			Tokens:      tokens,
			Credentials: auth.Credentials{Username: "cliente", Password: "123456"},
			Log:         log,
		},
		Campaigns: &controller.CampaignController{CampaignService: svc, Log: log},
		Progress: &handler.ProgressHandler{
			Reconciler:      &service.Reconciler{Campaigns: svc},
			CampaignService: svc,
			Tokens:          tokens,
			KeepAlive:       time.Hour,
			Log:             log,
		},
		Tokens:      tokens,
		WorkerToken: workerToken,
		CORSOrigins: []string{"*"},
		Log:         log,
	})
	return &api{handler: r, tokens: tokens, hub: h, disp: disp}
}

func (a *api) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func (a *api) login(t *testing.T) string {
	t.Helper()
	w := a.do(t, "POST", "/api/auth/login", `{"username":"cliente","password":"123456"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res))
	assert.Equal(t, "cliente", res.Username)
	return res.Token
}

func (a *api) snapshot(t *testing.T, tok string) model.Snapshot {
	t.Helper()
	w := a.do(t, "GET", "/api/progress", "", bearer(tok))
	require.Equal(t, http.StatusOK, w.Code)
	var snap model.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	return snap
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func worker() map[string]string {
	return map[string]string{"X-Worker-Token": workerToken}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	a := newAPI()
	w := a.do(t, "GET", "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := newAPI()
	w := a.do(t, "POST", "/api/auth/login", `{"username":"cliente","password":"nope"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, "POST", "/api/auth/login", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOperatorRoutesRequireBearer(t *testing.T) {
	a := newAPI()
	for _, route := range [][2]string{
		{"POST", "/api/leads"},
		{"GET", "/api/progress"},
		{"POST", "/api/stop"},
		{"POST", "/api/reset"},
		{"GET", "/api/campaigns/history"},
	} {
		w := a.do(t, route[0], route[1], `{}`, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, route[1])

		w = a.do(t, route[0], route[1], `{}`, bearer("garbage"))
		assert.Equal(t, http.StatusUnauthorized, w.Code, route[1])
	}
}

func TestCredentialsAreNotInterchangeable(t *testing.T) {
	a := newAPI()
	tok := a.login(t)

	w := a.do(t, "POST", "/api/progress", `{"sent":1}`, map[string]string{"X-Worker-Token": tok})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, "GET", "/api/progress", "", bearer(workerToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCampaignFlowOverHTTP(t *testing.T) {
	a := newAPI()
	tok := a.login(t)

	w := a.do(t, "POST", "/api/leads", `{"campaignName":"Promo A","leads":[{"name":"Ana","phone":"+1"},{"name":"Bob","phone":"+2"}]}`, bearer(tok))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["total"])
	assert.Equal(t, 1, a.disp.starts)

	w = a.do(t, "POST", "/api/leads", `{"campaignName":"Promo B","leads":[]}`, bearer(tok))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, "POST", "/api/progress", `{"lastLead":"Ana","lastPhone":"+1","status":"running","sent":1,"total":2}`, worker())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, "GET", "/api/progress", "", bearer(tok))
	require.Equal(t, http.StatusOK, w.Code)
	var snap model.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, 1, snap.Sent)
	assert.Equal(t, model.LeadSuccess, snap.Leads[0].Status)
	assert.Equal(t, model.LeadPending, snap.Leads[1].Status)

	w = a.do(t, "POST", "/api/stop", "", bearer(tok))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, model.CampaignStopped, snap.Status)
	assert.Equal(t, model.LeadNotSent, snap.Leads[1].Status)

	w = a.do(t, "POST", "/api/stop", "", bearer(tok))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, "POST", "/api/reset", "", bearer(tok))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"campaignName":"","total":0,"sent":0,"status":"idle","leads":[],"tempoParaEnvio":null,"timestampRecebido":null}`, w.Body.String())
}

func TestStartValidationOverHTTP(t *testing.T) {
	a := newAPI()
	tok := a.login(t)

	for _, body := range []string{
		`{"leads":[]}`,
		`{"campaignName":"Promo A"}`,
		`{"campaignName":"Promo A","leads":"Ana"}`,
		`{"campaignName":"Promo A","leads":[1,2]}`,
		`{"campaignName":5,"leads":[]}`,
	} {
		w := a.do(t, "POST", "/api/leads", body, bearer(tok))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Equal(t, 0, a.disp.starts)
}

func TestProgressRejectsMalformedNumbers(t *testing.T) {
	a := newAPI()
	w := a.do(t, "POST", "/api/progress", `{"sent":"lots"}`, worker())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "not an integer")
}

func TestOversizedBodiesRejected(t *testing.T) {
	a := newAPI()
	tok := a.login(t)
	big := strings.Repeat("a", 1<<20)

	w := a.do(t, "POST", "/api/progress", `{"campaignName":"`+big+`"}`, worker())
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = a.do(t, "POST", "/api/leads", `{"campaignName":"Promo A","leads":[{"name":"`+big+`","phone":"+1"}]}`, bearer(tok))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 0, a.disp.starts)
	assert.Equal(t, model.CampaignIdle, a.snapshot(t, tok).Status)
}

func TestProgressRejectedWhileIdle(t *testing.T) {
	a := newAPI()
	w := a.do(t, "POST", "/api/progress", `{"lastLead":"Ana","lastPhone":"+1","status":"running","sent":1}`, worker())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "idle")
}

func TestHistoryDisabledWithoutDatabase(t *testing.T) {
	a := newAPI()
	tok := a.login(t)
	w := a.do(t, "GET", "/api/campaigns/history", "", bearer(tok))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStreamRejectsMissingToken(t *testing.T) {
	a := newAPI()
	w := a.do(t, "GET", "/api/progress/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = a.do(t, "GET", "/api/progress/stream?token="+workerToken, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStreamDeliversInitialAndUpdates(t *testing.T) {
	a := newAPI()
	srv := httptest.NewServer(a.handler)
	defer srv.Close()
	tok := a.login(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/progress/stream?token="+url.QueryEscape(tok), nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan model.Snapshot, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Bytes()
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			var s model.Snapshot
			if json.Unmarshal(bytes.TrimPrefix(line, []byte("data: ")), &s) == nil {
				frames <- s
			}
		}
		close(frames)
	}()

	next := func() model.Snapshot {
		t.Helper()
		select {
		case s, ok := <-frames:
			require.True(t, ok, "stream ended")
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("no frame")
			return model.Snapshot{}
		}
	}

	assert.Equal(t, model.CampaignIdle, next().Status)
	require.Eventually(t, func() bool { return a.hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	w := a.do(t, "POST", "/api/leads", `{"campaignName":"Promo A","leads":[{"name":"Ana","phone":"+1"}]}`, bearer(tok))
	require.Equal(t, http.StatusOK, w.Code)

	s := next()
	assert.Equal(t, "Promo A", s.CampaignName)
	assert.Equal(t, model.CampaignRunning, s.Status)

	cancel()
	require.Eventually(t, func() bool { return a.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/tokenpulse/internal/alerts"
	"github.com/rewired-gh/tokenpulse/internal/analytics"
	"github.com/rewired-gh/tokenpulse/internal/models"
	"github.com/rewired-gh/tokenpulse/internal/tokens"
)

type fakeDashboard struct {
	store      *tokens.Store
	engine     *alerts.Engine
	triggers   []models.Trigger
	refreshErr error
	refreshed  int
}

func (f *fakeDashboard) Store() *tokens.Store             { return f.store }
func (f *fakeDashboard) Alerts() *alerts.Engine           { return f.engine }
func (f *fakeDashboard) RecentTriggers() []models.Trigger { return f.triggers }
func (f *fakeDashboard) Refresh(ctx context.Context) error {
	f.refreshed++
	return f.refreshErr
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeDashboard, *Hub) {
	t.Helper()
	return newTestServerWithOrigins(t, nil)
}

func newTestServerWithOrigins(t *testing.T, origins []string) (*httptest.Server, *fakeDashboard, *Hub) {
	t.Helper()
	store := tokens.NewStore()
	store.Replace([]models.Token{
		{ID: "a", Symbol: "PEPE", Name: "Pepe", Price: 1.5, Volume24h: 100, PriceChange24h: 5, Category: models.CategoryNewPairs},
		{ID: "b", Symbol: "DOGE", Name: "Doge", Price: 0.2, Volume24h: 300, PriceChange24h: -3, Category: models.CategoryNewPairs},
		{ID: "c", Symbol: "WIF", Name: "Dogwifhat", Price: 2.5, Volume24h: 200, PriceChange24h: 1, Category: models.CategoryMigrated},
	})
	dash := &fakeDashboard{store: store, engine: alerts.New(nil)}
	hub := NewHub(origins)
	srv := httptest.NewServer(NewServer(dash, hub, origins).Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, dash, hub
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTokens_DefaultView(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var got tokensResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/tokens", &got))
	require.Len(t, got.Tokens, 2)
	assert.Equal(t, "b", got.Tokens[0].ID, "new-pairs sorted by volume desc")
	assert.Equal(t, "a", got.Tokens[1].ID)
	assert.Equal(t, 2, got.Counts[models.CategoryNewPairs])
	assert.Equal(t, 1, got.Counts[models.CategoryMigrated])
}

func TestTokens_QueryParams(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var got tokensResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/tokens?tab=migrated&q=DOG", &got))
	require.Len(t, got.Tokens, 1)
	assert.Equal(t, "c", got.Tokens[0].ID, "search matches the name")

	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/tokens?sort=price&dir=asc&price_min=0.5", &got))
	require.Len(t, got.Tokens, 1)
	assert.Equal(t, "a", got.Tokens[0].ID)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/tokens?tab=nope", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/tokens?price_min=abc", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/tokens?dir=sideways", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/tokens?sort=bogus", nil))
}

func TestToken_ByID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var tok models.Token
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/tokens/a", &tok))
	assert.Equal(t, "PEPE", tok.Symbol)
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/tokens/zzz", nil))
}

func TestAnalytics(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var sum analytics.Summary
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/analytics", &sum))
	assert.Equal(t, 600.0, sum.TotalVolume)
	assert.Equal(t, 1.0, sum.AvgChange)
	require.NotEmpty(t, sum.TopGainers)
	assert.Equal(t, "a", sum.TopGainers[0].ID)
	assert.Equal(t, "b", sum.TopLosers[0].ID)
}

func TestAlerts_Lifecycle(t *testing.T) {
	srv, dash, _ := newTestServer(t)

	resp := post(t, srv.URL+"/api/alerts", `{"token_id":"a","target_price":10,"condition":"above"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.PriceAlert
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "PEPE", created.TokenSymbol, "symbol filled from the store")
	assert.True(t, created.Enabled)

	resp = post(t, srv.URL+"/api/alerts", `{"token_id":"","target_price":10}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = post(t, srv.URL+"/api/alerts", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv.URL+"/api/alerts/"+created.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var toggled models.PriceAlert
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&toggled))
	assert.False(t, toggled.Enabled)

	resp = post(t, srv.URL+"/api/alerts/"+created.ID+"/reset", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = post(t, srv.URL+"/api/alerts/missing/toggle", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var list []models.PriceAlert
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/alerts", &list))
	assert.Len(t, list, 1)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/alerts/"+created.ID, nil)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)
	assert.Empty(t, dash.engine.List())
}

func TestRefresh(t *testing.T) {
	srv, dash, _ := newTestServer(t)

	resp := post(t, srv.URL+"/api/refresh", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	dash.refreshErr = errors.New("upstream down")
	resp = post(t, srv.URL+"/api/refresh", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, 2, dash.refreshed)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var health healthResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 3, health.Tokens)
	assert.Zero(t, health.StreamClients)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStream_DeliversEvents(t *testing.T) {
	srv, _, hub := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
	var health healthResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	assert.Equal(t, 1, health.StreamClients)

	hub.OnTick(models.Token{ID: "a", Price: 1.6, PriceDirection: models.DirectionUp})
	require.NoError(t, hub.Notify(context.Background(), models.Trigger{AlertID: "x", TokenSymbol: "PEPE"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventTick, ev.Type)
	var tok models.Token
	require.NoError(t, json.Unmarshal(ev.Data, &tok))
	assert.Equal(t, models.DirectionUp, tok.PriceDirection)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventTrigger, ev.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCORS_OpenByDefault(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/tokens", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://elsewhere.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowedOrigins(t *testing.T) {
	srv, _, _ := newTestServerWithOrigins(t, []string{"http://dash.example"})

	get := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/tokens", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	assert.Equal(t, "http://dash.example", get("http://dash.example").Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, get("http://evil.example").Header.Get("Access-Control-Allow-Origin"))
}

func TestStream_RejectsDisallowedOrigin(t *testing.T) {
	srv, _, hub := newTestServerWithOrigins(t, []string{"http://dash.example"})
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://dash.example"}})
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
}

package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/barter-api/internal/cache"
	"github.com/rajivgeraev/barter-api/internal/config"
	"github.com/rajivgeraev/barter-api/internal/db"
)

type client struct {
	t     *testing.T
	app   *fiber.App
	token string
}

func (c client) do(method, path, body string) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.app.Test(req)
	require.NoError(c.t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	var out map[string]any
	if len(data) > 0 {
		require.NoError(c.t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		JWTSecret: "secret",
		JWTTTL:    time.Hour,
		PageSize:  15,
	}
	return newApp(cfg, dependencies{
		store:   db.NewMemoryStore(),
		revoker: cache.NewMemoryRevoker(),
		logger:  slog.Default(),
	})
}

func register(t *testing.T, app *fiber.App, username string) client {
	t.Helper()
	status, body := client{t: t, app: app}.do(http.MethodPost, "/api/auth/register",
		`{"username":"`+username+`","password":"long enough password"}`)
	require.Equal(t, http.StatusCreated, status, body)
	return client{t: t, app: app, token: body["token"].(string)}
}

func createAd(c client, title, condition string) string {
	c.t.Helper()
	status, body := c.do(http.MethodPost, "/api/ads",
		`{"title":"`+title+`","description":"описание","category":"Разное","condition":"`+condition+`"}`)
	require.Equal(c.t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	status, body := client{t: t, app: app}.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestExchangeScenario(t *testing.T) {
	app := newTestApp(t)
	a := register(t, app, "user_a")
	b := register(t, app, "user_b")

	ad1 := createAd(a, "Книга", "new")
	ad2 := createAd(b, "Велосипед", "used")

	status, body := a.do(http.MethodPost, "/api/exchanges",
		`{"ad_sender_id":"`+ad1+`","ad_receiver_id":"`+ad2+`","comment":"swap?"}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "waiting", body["status"])
	proposal := body["id"].(string)

	status, _ = b.do(http.MethodPost, "/api/exchanges/"+proposal+"/accept", "")
	require.Equal(t, http.StatusOK, status)

	// решение окончательно
	status, _ = b.do(http.MethodPost, "/api/exchanges/"+proposal+"/decline", "")
	assert.Equal(t, http.StatusConflict, status)

	// отправитель может удалить и решенное предложение
	status, _ = a.do(http.MethodDelete, "/api/exchanges/"+proposal, "")
	assert.Equal(t, http.StatusOK, status)

	// владелец меняет объявление, чужой получает отказ
	status, _ = a.do(http.MethodPatch, "/api/ads/"+ad1, `{"title":"x"}`)
	assert.Equal(t, http.StatusOK, status)
	status, _ = b.do(http.MethodPatch, "/api/ads/"+ad1, `{"title":"y"}`)
	assert.Equal(t, http.StatusForbidden, status)

	// фильтр по состоянию точный
	status, body = client{t: t, app: app}.do(http.MethodGet, "/api/ads?condition=new", "")
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, ad1, items[0].(map[string]any)["id"])

	status, body = client{t: t, app: app}.do(http.MethodGet, "/api/ads?condition=NEW", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["items"])

	// категория сравнивается без учета регистра
	status, body = client{t: t, app: app}.do(http.MethodGet, "/api/ads?category="+url.QueryEscape("РАЗНОЕ"), "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 2)
}

func TestAdDeleteRemovesProposals(t *testing.T) {
	app := newTestApp(t)
	a := register(t, app, "user_a")
	b := register(t, app, "user_b")

	ad1 := createAd(a, "Книга", "new")
	ad2 := createAd(b, "Велосипед", "used")

	status, body := a.do(http.MethodPost, "/api/exchanges", `{"ad_sender_id":"`+ad1+`","ad_receiver_id":"`+ad2+`"}`)
	require.Equal(t, http.StatusCreated, status, body)
	proposal := body["id"].(string)

	status, _ = b.do(http.MethodPost, "/api/favorites", `{"ad_id":"`+ad1+`"}`)
	require.Equal(t, http.StatusCreated, status)

	status, _ = a.do(http.MethodDelete, "/api/ads/"+ad1, "")
	require.Equal(t, http.StatusOK, status)

	status, _ = b.do(http.MethodGet, "/api/exchanges/"+proposal, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = b.do(http.MethodGet, "/api/exchanges/received", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["items"])

	status, body = b.do(http.MethodGet, "/api/favorites", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["items"])
}

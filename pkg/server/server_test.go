package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmur-app/murmur/pkg/api"
	"github.com/murmur-app/murmur/pkg/archive"
	"github.com/murmur-app/murmur/pkg/dictation"
	"github.com/murmur-app/murmur/pkg/settings"
	"github.com/murmur-app/murmur/pkg/transcriber"
)

func TestServerEndpoints(t *testing.T) {
	ctx := context.Background()
	baseURL := startServer(t, ctx, "the quick brown fox")

	t.Run("ping", func(t *testing.T) {
		var status map[string]string
		code := httpDo(t, ctx, http.MethodGet, baseURL+"/api/ping", nil, &status)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", status["status"])
	})

	t.Run("transcribe", func(t *testing.T) {
		req := api.TranscribeRequest{Audio: base64.StdEncoding.EncodeToString([]byte("audio"))}
		var result transcriber.Result
		code := httpDo(t, ctx, http.MethodPost, baseURL+"/api/transcribe", req, &result)
		assert.Equal(t, http.StatusOK, code)
		require.True(t, result.Success, "unexpected error: %s", result.Error)
		assert.Equal(t, "the quick brown fox", result.Text)
	})

	t.Run("transcribe rejects bad base64", func(t *testing.T) {
		req := api.TranscribeRequest{Audio: "not-base64!!!"}
		code := httpDo(t, ctx, http.MethodPost, baseURL+"/api/transcribe", req, nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("history lifecycle", func(t *testing.T) {
		var saved api.SaveResponse
		code := httpDo(t, ctx, http.MethodPost, baseURL+"/api/history", api.SaveRequest{Text: "hello world", DurationSeconds: 1.5}, &saved)
		require.Equal(t, http.StatusOK, code)
		require.NotZero(t, saved.ID)

		var page archive.HistoryPage
		code = httpDo(t, ctx, http.MethodGet, baseURL+"/api/history", nil, &page)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, int64(1), page.Total)

		code = httpDo(t, ctx, http.MethodGet, baseURL+"/api/history?q=hello", nil, &page)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, int64(1), page.Total)

		code = httpDo(t, ctx, http.MethodGet, baseURL+"/api/history?q=absent", nil, &page)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, int64(0), page.Total)

		var fav api.FavoriteResponse
		code = httpDo(t, ctx, http.MethodPost, fmt.Sprintf("%s/api/history/%d/favorite/toggle", baseURL, saved.ID), nil, &fav)
		require.Equal(t, http.StatusOK, code)
		assert.True(t, fav.IsFavorite)

		var del api.DeleteResponse
		code = httpDo(t, ctx, http.MethodDelete, fmt.Sprintf("%s/api/history/%d", baseURL, saved.ID), nil, &del)
		require.Equal(t, http.StatusOK, code)
		assert.True(t, del.Deleted)

		code = httpDo(t, ctx, http.MethodDelete, baseURL+"/api/history", nil, nil)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("save rejects empty text", func(t *testing.T) {
		code := httpDo(t, ctx, http.MethodPost, baseURL+"/api/history", api.SaveRequest{}, nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("favorite toggle on missing id", func(t *testing.T) {
		code := httpDo(t, ctx, http.MethodPost, baseURL+"/api/history/9999/favorite/toggle", nil, nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("settings round trip", func(t *testing.T) {
		var current settings.Settings
		code := httpDo(t, ctx, http.MethodGet, baseURL+"/api/settings", nil, &current)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "light", current.Theme)

		code = httpDo(t, ctx, http.MethodPut, baseURL+"/api/settings", api.SettingRequest{Key: settings.KeyTheme, Value: "dark"}, &current)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "dark", current.Theme)
	})

	t.Run("setup flow", func(t *testing.T) {
		var fl api.FirstLaunchResponse
		code := httpDo(t, ctx, http.MethodGet, baseURL+"/api/setup", nil, &fl)
		require.Equal(t, http.StatusOK, code)
		assert.True(t, fl.FirstLaunch)

		code = httpDo(t, ctx, http.MethodPost, baseURL+"/api/setup/complete", nil, &fl)
		require.Equal(t, http.StatusOK, code)
		assert.False(t, fl.FirstLaunch)
	})

	t.Run("key management", func(t *testing.T) {
		code := httpDo(t, ctx, http.MethodPut, baseURL+"/api/key", api.KeyRequest{Key: "server-key"}, nil)
		assert.Equal(t, http.StatusOK, code)

		var result transcriber.TestResult
		code = httpDo(t, ctx, http.MethodPost, baseURL+"/api/key/test", api.KeyRequest{}, &result)
		require.Equal(t, http.StatusOK, code)
		assert.True(t, result.Success)

		code = httpDo(t, ctx, http.MethodDelete, baseURL+"/api/key", nil, nil)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("key rejects empty body", func(t *testing.T) {
		code := httpDo(t, ctx, http.MethodPut, baseURL+"/api/key", api.KeyRequest{}, nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func startServer(t *testing.T, ctx context.Context, text string) string {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
			},
		})
	}))
	t.Cleanup(backend.Close)

	store, err := archive.NewSQLiteStore(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := settings.NewService(
		filepath.Join(t.TempDir(), "settings.yaml"),
		keyring.NewArrayKeyring([]keyring.Item{{Key: "api_key", Data: []byte("test-key")}}),
	)
	require.NoError(t, err)

	client := transcriber.New(transcriber.WithBaseURL(backend.URL))
	srv := New(dictation.New(store, client, svc))

	ln, err := Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	go srv.Serve(ctx, ln)

	return "http://" + ln.Addr().String()
}

func httpDo(t *testing.T, ctx context.Context, method, url string, body, v any) int {
	t.Helper()

	var reqBody io.Reader = http.NoBody
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(buf, v))
	}

	return resp.StatusCode
}

package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotspot/internal/model"
)

func telegramServer(t *testing.T, sent *[]map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Hotspot","username":"hotspot_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			*sent = append(*sent, map[string]string{
				"chat_id":    r.PostForm.Get("chat_id"),
				"text":       r.PostForm.Get("text"),
				"parse_mode": r.PostForm.Get("parse_mode"),
			})
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTelegramSend(t *testing.T) {
	var sent []map[string]string
	srv := telegramServer(t, &sent)

	tg, err := NewTelegram(TelegramConfig{Token: "123:abc", ChatID: 42, Endpoint: srv.URL + "/bot%s/%s"}, nil)
	require.NoError(t, err)

	url := "https://github.com/a/b"
	require.NoError(t, tg.HotspotCreated(context.Background(), model.Hotspot{
		Title:           "a/b",
		Source:          "GitHub",
		SourceURL:       &url,
		RelevanceScore:  0.85,
		Likes:           10,
		MatchedKeywords: []string{"go"},
	}))
	require.Len(t, sent, 1)
	assert.Equal(t, "42", sent[0]["chat_id"])
	assert.Equal(t, "HTML", sent[0]["parse_mode"])
	assert.Contains(t, sent[0]["text"], "<b>a/b</b>")
}

func TestNewTelegramRequiresConfig(t *testing.T) {
	_, err := NewTelegram(TelegramConfig{Token: "x"}, nil)
	assert.Error(t, err)
	_, err = NewTelegram(TelegramConfig{ChatID: 1}, nil)
	assert.Error(t, err)
}

func TestNewTelegramBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	_, err := NewTelegram(TelegramConfig{Token: "bad", ChatID: 1, Endpoint: srv.URL + "/bot%s/%s"}, nil)
	assert.Error(t, err)
}

func TestFormatHotspot(t *testing.T) {
	url := "https://twitter.com/u/status/1"
	got := FormatHotspot(model.Hotspot{
		Title:           "<script> & friends",
		Source:          "Twitter",
		SourceURL:       &url,
		RelevanceScore:  0.8,
		Likes:           3,
		MatchedKeywords: []string{"AI", "agents"},
	})
	assert.Equal(t, "<b>&lt;script&gt; &amp; friends</b>\nTwitter · score 0.80 · 3 likes\nkeywords: AI, agents\nhttps://twitter.com/u/status/1", got)

	bare := FormatHotspot(model.Hotspot{Title: "t", Source: "OpenRouter"})
	assert.Equal(t, "<b>t</b>\nOpenRouter · score 0.00 · 0 likes", bare)
}

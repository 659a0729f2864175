package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathcanvas/api/internal/calc"
)

var img = calc.Image{Data: []byte{0x89, 0x50, 0x4E, 0x47}, MIMEType: "image/png"}

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content []struct {
					Type     string `json:"type"`
					Text     string `json:"text"`
					ImageURL struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		require.Len(t, body.Messages, 1)
		require.Len(t, body.Messages[0].Content, 2)
		assert.Equal(t, "solve this", body.Messages[0].Content[0].Text)
		assert.Equal(t, "data:image/png;base64,iVBORw==", body.Messages[0].Content[1].ImageURL.URL)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[{'expr': 'x', 'result': 4}]"}}]}`))
	}))
	defer srv.Close()

	e := New("sk-test", "gpt-4o-mini", srv.URL+"/v1/", time.Second)
	out, err := e.Complete(context.Background(), "solve this", img)
	require.NoError(t, err)
	assert.Equal(t, "[{'expr': 'x', 'result': 4}]", out)
}

func TestComplete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New("sk-test", "gpt-4o-mini", srv.URL, time.Second).Complete(context.Background(), "p", img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai 429")
	assert.Contains(t, err.Error(), "quota")
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	out, err := New("sk-test", "m", srv.URL, time.Second).Complete(context.Background(), "p", img)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestComplete_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New("sk-test", "m", srv.URL, 50*time.Millisecond).Complete(context.Background(), "p", img)
	require.Error(t, err)
}

func TestComplete_MissingKey(t *testing.T) {
	_, err := New("", "m", "", 0).Complete(context.Background(), "p", img)
	assert.EqualError(t, err, "OPENAI_API_KEY is empty")
}

func TestNew_Defaults(t *testing.T) {
	e := New("k", "m", "", 0)
	assert.Equal(t, DefaultBaseURL, e.BaseURL)
	assert.Equal(t, 60*time.Second, e.httpc.Timeout)
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(ProviderAnthropic, "sk-ant-test")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.Provider())

	p, err = NewProvider(ProviderOpenAI, "sk-test")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Provider())

	_, err = NewProvider("gemini", "key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}

func TestCredentialEnv(t *testing.T) {
	assert.Equal(t, "ANTHROPIC_API_KEY", CredentialEnv(ProviderAnthropic))
	assert.Equal(t, "OPENAI_API_KEY", CredentialEnv(ProviderOpenAI))
	assert.Equal(t, "ANTHROPIC_API_KEY", CredentialEnv(""))
}

func TestAnthropicProvider_Call(t *testing.T) {
	t.Run("returns concatenated text", func(t *testing.T) {
		var got map[string]interface{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "msg_1",
				"type": "message",
				"role": "assistant",
				"model": "claude-3-5-sonnet-20241022",
				"content": [{"type": "text", "text": "feature_request"}],
				"stop_reason": "end_turn",
				"usage": {"input_tokens": 12, "output_tokens": 3}
			}`))
		}))
		defer srv.Close()

		p := NewAnthropicProvider("sk-ant-test",
			anthropicoption.WithBaseURL(srv.URL),
		)

		resp, err := p.Call(context.Background(), Request{
			Model:     "claude-3-5-sonnet-20241022",
			Prompt:    "classify me",
			MaxTokens: 50,
		})
		require.NoError(t, err)
		assert.Equal(t, "feature_request", resp.Content)
		assert.Equal(t, 12, resp.Usage.InputTokens)
		assert.Equal(t, 3, resp.Usage.OutputTokens)
		assert.Equal(t, "claude-3-5-sonnet-20241022", got["model"])
		assert.EqualValues(t, 50, got["max_tokens"])
	})

	t.Run("surfaces service errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`))
		}))
		defer srv.Close()

		p := NewAnthropicProvider("sk-ant-test",
			anthropicoption.WithBaseURL(srv.URL),
		)

		_, err := p.Call(context.Background(), Request{Model: "nope", Prompt: "x", MaxTokens: 10})
		assert.Error(t, err)
	})

	t.Run("empty content is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "msg_2",
				"type": "message",
				"role": "assistant",
				"model": "m",
				"content": [],
				"stop_reason": "end_turn",
				"usage": {"input_tokens": 1, "output_tokens": 0}
			}`))
		}))
		defer srv.Close()

		p := NewAnthropicProvider("sk-ant-test",
			anthropicoption.WithBaseURL(srv.URL),
		)

		_, err := p.Call(context.Background(), Request{Model: "m", Prompt: "x", MaxTokens: 10})
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestOpenAIProvider_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 1, "total_tokens": 6}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test",
		openaioption.WithBaseURL(srv.URL+"/"),
	)

	resp, err := p.Call(context.Background(), Request{Model: "gpt-4o", Prompt: "hi", MaxTokens: 20})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 5, resp.Usage.InputTokens)
}

func TestProviders_SingleAttemptOnServerError(t *testing.T) {
	newServer := func(hits *int32) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(hits, 1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
		}))
	}

	t.Run("anthropic", func(t *testing.T) {
		var hits int32
		srv := newServer(&hits)
		defer srv.Close()

		p := NewAnthropicProvider("sk-ant-test", anthropicoption.WithBaseURL(srv.URL))
		_, err := p.Call(context.Background(), Request{Model: "m", Prompt: "x", MaxTokens: 10})
		assert.Error(t, err)
		assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	})

	t.Run("openai", func(t *testing.T) {
		var hits int32
		srv := newServer(&hits)
		defer srv.Close()

		p := NewOpenAIProvider("sk-test", openaioption.WithBaseURL(srv.URL+"/"))
		_, err := p.Call(context.Background(), Request{Model: "gpt-4o", Prompt: "x", MaxTokens: 10})
		assert.Error(t, err)
		assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	})
}

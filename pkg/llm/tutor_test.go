package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnswerQuestion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "老师在 [01:00-01:12] 说过“力等于质量乘以加速度”。"}}]
		}`))
	}))
	defer server.Close()

	client := NewTutorClient("test-key")
	client.BaseURL = server.URL

	answer, err := client.AnswerQuestion(context.Background(), "……课堂转写……", "什么是牛顿第二定律？")
	assert.NoError(t, err)
	assert.Contains(t, answer, "[01:00-01:12]")
}

func TestAnswerQuestion_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewTutorClient("test-key")
	client.BaseURL = server.URL

	_, err := client.AnswerQuestion(context.Background(), "转写", "提问")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestAnswerQuestion_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := NewTutorClient("test-key")
	client.BaseURL = server.URL

	_, err := client.AnswerQuestion(context.Background(), "转写", "提问")
	assert.Error(t, err)
}

package asr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func init() {
	utils.InitLogger(utils.LogLevelQuiet, "")
}

// fakeTranscriber 测试用的识别策略桩
type fakeTranscriber struct {
	name string
	fn   func(req Request) ([]models.Sentence, error)
}

func (f *fakeTranscriber) Name() string { return f.name }

func (f *fakeTranscriber) Transcribe(ctx context.Context, req Request, callback ProgressCallback) ([]models.Sentence, error) {
	return f.fn(req)
}

func testConfig() *models.Config {
	config := models.NewDefaultConfig()
	config.MaxRetries = 1
	config.RetryDelay = 0.1
	return config
}

func writeTempAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, []byte("fake wav data"), 0644)
	assert.NoError(t, err)
	return path
}

func TestSelectTranscriber(t *testing.T) {
	sync := &fakeTranscriber{name: "sync"}
	async := &fakeTranscriber{name: "async"}

	// 显式异步且有URL才选择异步策略
	assert.Equal(t, async, SelectTranscriber("async", "https://cdn.example.com/a.mp3", sync, async))

	// 缺少URL时即使要求异步也回落到同步
	assert.Equal(t, sync, SelectTranscriber("async", "", sync, async))

	// 同步模式始终选择同步策略
	assert.Equal(t, sync, SelectTranscriber("sync", "https://cdn.example.com/a.mp3", sync, async))
}

func TestTranscribeURLUsesConfiguredMode(t *testing.T) {
	newClient := func(mode string) *Client {
		sync := &fakeTranscriber{name: "sync", fn: func(req Request) ([]models.Sentence, error) {
			return []models.Sentence{{Text: "同步策略产出", BeginMs: 0, EndMs: 1000}}, nil
		}}
		async := &fakeTranscriber{name: "async", fn: func(req Request) ([]models.Sentence, error) {
			return []models.Sentence{{Text: "异步策略产出", BeginMs: 0, EndMs: 1000}}, nil
		}}
		return &Client{Sync: sync, Async: async, Mode: mode, stats: make(map[string]*Stats)}
	}

	// async模式走异步策略
	client := newClient("async")
	sentences, err := client.TranscribeURL(context.Background(), "https://cdn.example.com/lesson01.mp3", nil)
	assert.NoError(t, err)
	assert.Equal(t, "异步策略产出", sentences[0].Text)

	// sync模式下同一URL走同步策略
	client = newClient("sync")
	sentences, err = client.TranscribeURL(context.Background(), "https://cdn.example.com/lesson01.mp3", nil)
	assert.NoError(t, err)
	assert.Equal(t, "同步策略产出", sentences[0].Text)
}

func TestSyncTranscribe(t *testing.T) {
	// 模拟同步识别后端
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiRecognize, r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "zh", r.FormValue("language"))

		fmt.Fprint(w, `{"sentences":[
			{"text":"今天讲二分查找","begin_time":0,"end_time":2500,"confidence":0.95},
			{"text":"","begin_time":2500,"end_time":2600},
			{"text":"先看不变式","begin_time":3000,"end_time":5000,"confidence":0.9}
		]}`)
	}))
	defer server.Close()

	transcriber := NewSyncTranscriber()
	transcriber.BaseURL = server.URL

	path := writeTempAudio(t, "lecture_chunk000.wav")
	sentences, err := transcriber.Transcribe(context.Background(), Request{AudioPath: path, Language: "zh"}, nil)

	assert.NoError(t, err)
	// 空文本句子被丢弃
	assert.Len(t, sentences, 2)
	assert.Equal(t, "今天讲二分查找", sentences[0].Text)
	assert.Equal(t, int64(0), sentences[0].BeginMs)
	assert.Equal(t, int64(2500), sentences[0].EndMs)
	assert.Equal(t, int64(3000), sentences[1].BeginMs)
}

func TestSyncTranscribeBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	transcriber := NewSyncTranscriber()
	transcriber.BaseURL = server.URL

	path := writeTempAudio(t, "lecture_chunk000.wav")
	_, err := transcriber.Transcribe(context.Background(), Request{AudioPath: path}, nil)
	assert.Error(t, err)
}

func TestAsyncTranscribe(t *testing.T) {
	// 模拟异步后端：提交后前两次查询返回运行中，第三次成功
	queryCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			fmt.Fprint(w, `{"task_id":"task-001"}`)
			return
		}

		queryCount++
		switch {
		case queryCount == 1:
			fmt.Fprint(w, `{"task_id":"task-001","status":"PENDING"}`)
		case queryCount == 2:
			fmt.Fprint(w, `{"task_id":"task-001","status":"RUNNING"}`)
		default:
			fmt.Fprint(w, `{"task_id":"task-001","status":"SUCCEEDED","sentences":[
				{"text":"同学们好","begin_time":100,"end_time":1200,"confidence":0.97}
			]}`)
		}
	}))
	defer server.Close()

	transcriber := NewAsyncTranscriber(testConfig())
	transcriber.BaseURL = server.URL
	transcriber.PollInterval = 10 * time.Millisecond
	transcriber.PollTimeout = 5 * time.Second

	sentences, err := transcriber.Transcribe(context.Background(),
		Request{FileURL: "https://cdn.example.com/lecture.mp3", Language: "zh"}, nil)

	assert.NoError(t, err)
	assert.Len(t, sentences, 1)
	assert.Equal(t, "同学们好", sentences[0].Text)
	assert.GreaterOrEqual(t, queryCount, 3)
}

func TestAsyncTranscribeTimeout(t *testing.T) {
	// 任务永远处于运行中，应返回超时哨兵错误而非一般失败
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			fmt.Fprint(w, `{"task_id":"task-002"}`)
			return
		}
		fmt.Fprint(w, `{"task_id":"task-002","status":"RUNNING"}`)
	}))
	defer server.Close()

	transcriber := NewAsyncTranscriber(testConfig())
	transcriber.BaseURL = server.URL
	transcriber.PollInterval = 5 * time.Millisecond
	transcriber.PollTimeout = 30 * time.Millisecond

	_, err := transcriber.Transcribe(context.Background(),
		Request{FileURL: "https://cdn.example.com/lecture.mp3"}, nil)

	assert.True(t, errors.Is(err, utils.ErrAsyncTimeout))
}

func TestAsyncTranscribeFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			fmt.Fprint(w, `{"task_id":"task-003"}`)
			return
		}
		fmt.Fprint(w, `{"task_id":"task-003","status":"FAILED","message":"音频格式不支持"}`)
	}))
	defer server.Close()

	transcriber := NewAsyncTranscriber(testConfig())
	transcriber.BaseURL = server.URL
	transcriber.PollInterval = 5 * time.Millisecond
	transcriber.PollTimeout = 5 * time.Second

	_, err := transcriber.Transcribe(context.Background(),
		Request{FileURL: "https://cdn.example.com/lecture.mp3"}, nil)

	assert.Error(t, err)
	assert.False(t, errors.Is(err, utils.ErrAsyncTimeout)) // 失败与超时是两种结论
	assert.Contains(t, err.Error(), "音频格式不支持")
}

func TestAsyncSubmitFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	transcriber := NewAsyncTranscriber(testConfig())
	transcriber.BaseURL = server.URL

	_, err := transcriber.Transcribe(context.Background(),
		Request{FileURL: "https://cdn.example.com/lecture.mp3"}, nil)

	var submitErr *utils.AsyncSubmitError
	assert.True(t, errors.As(err, &submitErr))
}

func TestTranscribeChunksOrderAndPartialFailure(t *testing.T) {
	client := NewClient(testConfig())

	// 分片1识别失败，其余成功；结果必须按分片序号排列
	client.Sync = &fakeTranscriber{name: "sync", fn: func(req Request) ([]models.Sentence, error) {
		switch filepath.Base(req.AudioPath) {
		case "chunk1.wav":
			return nil, errors.New("后端超时")
		default:
			return []models.Sentence{{Text: "内容 " + filepath.Base(req.AudioPath), BeginMs: 0, EndMs: 1000}}, nil
		}
	}}

	chunks := []models.AudioChunk{
		{Index: 0, StartOffsetMs: 0, NominalDurationMs: 180000, Path: "chunk0.wav"},
		{Index: 1, StartOffsetMs: 180000, NominalDurationMs: 180000, Path: "chunk1.wav"},
		{Index: 2, StartOffsetMs: 360000, NominalDurationMs: 120000, Path: "chunk2.wav"},
	}

	results, err := client.TranscribeChunks(context.Background(), chunks, nil)
	assert.NoError(t, err) // 部分失败不是任务失败

	assert.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i, r.Chunk.Index)
	}

	assert.NotEmpty(t, results[0].Sentences)
	assert.Nil(t, results[1].Sentences)

	var chunkErr *utils.ChunkTranscriptionError
	assert.True(t, errors.As(results[1].Err, &chunkErr))
	assert.Equal(t, 1, chunkErr.ChunkIndex)
	assert.NotEmpty(t, results[2].Sentences)
}

func TestTranscribeChunksAllFailed(t *testing.T) {
	client := NewClient(testConfig())
	client.Sync = &fakeTranscriber{name: "sync", fn: func(req Request) ([]models.Sentence, error) {
		return nil, errors.New("后端不可用")
	}}

	chunks := []models.AudioChunk{
		{Index: 0, Path: "chunk0.wav"},
		{Index: 1, Path: "chunk1.wav"},
	}

	_, err := client.TranscribeChunks(context.Background(), chunks, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "全部 2 个分片识别失败")
}

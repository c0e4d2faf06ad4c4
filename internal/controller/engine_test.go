package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ccp-p/classroom-timeline/pkg/asr"
	"github.com/ccp-p/classroom-timeline/pkg/models"
)

// stubTranscriber 测试用的识别策略桩
type stubTranscriber struct {
	name      string
	sentences []models.Sentence
	gotURL    string
}

func (s *stubTranscriber) Name() string { return s.name }

func (s *stubTranscriber) Transcribe(ctx context.Context, req asr.Request, callback asr.ProgressCallback) ([]models.Sentence, error) {
	s.gotURL = req.FileURL
	return s.sentences, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine("", "error", "")
	assert.NoError(t, err)
	t.Cleanup(engine.Cleanup)

	engine.Config.ExportJSON = false
	engine.Config.ExportSRT = false
	return engine
}

func TestTranscribeRemoteSessionRequiresAsyncMode(t *testing.T) {
	engine := newTestEngine(t)
	engine.Config.ASRMode = "sync"

	_, err := engine.TranscribeRemoteSession("https://cdn.example.com/lesson01.mp3")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "异步模式")
}

func TestTranscribeRemoteSession(t *testing.T) {
	engine := newTestEngine(t)
	engine.Config.ASRMode = "async"

	stub := &stubTranscriber{name: "async", sentences: []models.Sentence{
		{Text: "远程录音的第一段讲解内容", BeginMs: 0, EndMs: 4000, Confidence: 0.9},
	}}
	engine.ASRClient.Async = stub

	result, err := engine.TranscribeRemoteSession("https://cdn.example.com/recordings/lesson01.mp3")
	assert.NoError(t, err)
	assert.Equal(t, "lesson01", result.SessionID)
	assert.Equal(t, "https://cdn.example.com/recordings/lesson01.mp3", stub.gotURL)
	assert.Len(t, result.Segments, 1)
	assert.Equal(t, int64(4000), result.DurationMs)

	// 转写段落应已入库，供定位和热点查询使用
	segments, err := engine.Store.GetSegments("lesson01")
	assert.NoError(t, err)
	assert.Len(t, segments, 1)
}

func TestTranscribeRemoteSessionRejectsBadURL(t *testing.T) {
	engine := newTestEngine(t)
	engine.Config.ASRMode = "async"

	_, err := engine.TranscribeRemoteSession("://missing-scheme")
	assert.Error(t, err)
}

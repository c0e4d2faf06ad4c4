package asr

import (
	"context"

	"github.com/ccp-p/classroom-timeline/pkg/models"
)

// ProgressCallback 是进度回调函数，用于通知识别过程的进度
type ProgressCallback func(percent int, message string)

// Request 一次识别请求的输入
type Request struct {
	AudioPath string // 本地音频分片路径（同步策略使用）
	FileURL   string // 可外部访问的音频URL（异步策略使用）
	Language  string // 识别语言提示
}

// Transcriber 定义了语音识别能力的接口，同步与异步是两个可互换的策略实现
type Transcriber interface {
	// Name 返回策略名称
	Name() string
	// Transcribe 执行识别并返回分片内相对时间的句子列表
	Transcribe(ctx context.Context, req Request, callback ProgressCallback) ([]models.Sentence, error)
}

// 异步任务状态常量
const (
	TaskStatusPending   = "PENDING"
	TaskStatusRunning   = "RUNNING"
	TaskStatusSucceeded = "SUCCEEDED"
	TaskStatusFailed    = "FAILED"
)

// SelectTranscriber 根据模式与输入可用性选择识别策略
// 只有显式要求异步且提供了可访问的音频URL时才使用异步策略，
// 其余情况一律走按分片的同步策略
func SelectTranscriber(mode, fileURL string, sync, async Transcriber) Transcriber {
	if mode == "async" && fileURL != "" {
		return async
	}
	return sync
}

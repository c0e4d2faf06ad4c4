package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

const (
	// 异步任务API路径
	apiSubmitTask = "/api/v1/asr/transcriptions"
	apiQueryTask  = "/api/v1/asr/transcriptions/%s"
)

// AsyncTranscriber 异步识别策略：提交可访问的音频URL后轮询任务状态，
// 用于未切分的整段长录音
type AsyncTranscriber struct {
	BaseURL      string
	HTTPClient   *http.Client
	PollInterval time.Duration // 轮询间隔
	PollTimeout  time.Duration // 轮询总时长上限
}

// NewAsyncTranscriber 创建异步识别策略实例
func NewAsyncTranscriber(config *models.Config) *AsyncTranscriber {
	return &AsyncTranscriber{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		PollInterval: time.Duration(config.PollIntervalSecond) * time.Second,
		PollTimeout:  time.Duration(config.PollTimeoutSecond) * time.Second,
	}
}

// Name 实现Transcriber接口
func (a *AsyncTranscriber) Name() string {
	return "async"
}

// submitResponse 任务提交API的响应结构
type submitResponse struct {
	TaskID string `json:"task_id"`
}

// statusResponse 任务状态API的响应结构
type statusResponse struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Sentences []struct {
		Text       string  `json:"text"`
		BeginTime  int64   `json:"begin_time"`
		EndTime    int64   `json:"end_time"`
		Confidence float64 `json:"confidence"`
	} `json:"sentences"`
}

// Transcribe 实现Transcriber接口：提交任务后按固定间隔轮询，直到终态或超出等待上限
// 超出上限返回ErrAsyncTimeout，表示任务仍在处理中而非失败
func (a *AsyncTranscriber) Transcribe(ctx context.Context, req Request, callback ProgressCallback) ([]models.Sentence, error) {
	if req.FileURL == "" {
		return nil, &utils.AsyncSubmitError{Cause: fmt.Errorf("缺少可访问的音频URL")}
	}

	if callback != nil {
		callback(10, "提交任务...")
	}

	taskID, err := a.submit(ctx, req)
	if err != nil {
		return nil, &utils.AsyncSubmitError{Cause: err}
	}

	utils.Info("异步识别任务已创建: %s", taskID)

	if callback != nil {
		callback(20, "等待结果...")
	}

	return a.poll(ctx, taskID, callback)
}

// submit 提交识别任务
func (a *AsyncTranscriber) submit(ctx context.Context, req Request) (string, error) {
	payload := map[string]interface{}{
		"file_url": req.FileURL,
		"language": req.Language,
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("JSON编码失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.BaseURL+apiSubmitTask, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("提交任务返回错误状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	var result submitResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("解析响应JSON失败: %w", err)
	}

	if result.TaskID == "" {
		return "", fmt.Errorf("响应中缺少task_id")
	}

	return result.TaskID, nil
}

// poll 轮询任务状态直到终态
func (a *AsyncTranscriber) poll(ctx context.Context, taskID string, callback ProgressCallback) ([]models.Sentence, error) {
	deadline := time.Now().Add(a.PollTimeout)
	ticker := time.NewTicker(a.PollInterval)
	defer ticker.Stop()

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			// 取消任务必须立即停止轮询
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return nil, utils.ErrAsyncTimeout
		}

		attempt++
		status, err := a.queryStatus(ctx, taskID)
		if err != nil {
			// 单次查询失败不终止轮询，下一拍重试
			utils.Warn("查询任务状态失败: %v", err)
			continue
		}

		switch status.Status {
		case TaskStatusPending, TaskStatusRunning:
			if callback != nil && attempt%5 == 0 {
				progress := 20 + attempt/5
				if progress > 99 {
					progress = 99
				}
				callback(progress, fmt.Sprintf("处理中 (%s)...", status.Status))
			}
		case TaskStatusSucceeded:
			if callback != nil {
				callback(100, "识别完成")
			}
			return a.makeSentences(status), nil
		case TaskStatusFailed:
			return nil, fmt.Errorf("异步识别任务失败: %s", status.Message)
		default:
			return nil, fmt.Errorf("未知的任务状态: %s", status.Status)
		}
	}
}

// queryStatus 查询一次任务状态
func (a *AsyncTranscriber) queryStatus(ctx context.Context, taskID string) (*statusResponse, error) {
	url := a.BaseURL + fmt.Sprintf(apiQueryTask, taskID)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	resp, err := a.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("状态查询返回错误状态码: %d", resp.StatusCode)
	}

	var result statusResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析响应JSON失败: %w", err)
	}

	return &result, nil
}

// makeSentences 处理识别结果
func (a *AsyncTranscriber) makeSentences(status *statusResponse) []models.Sentence {
	sentences := make([]models.Sentence, 0, len(status.Sentences))

	for _, item := range status.Sentences {
		if item.Text == "" {
			continue
		}
		sentences = append(sentences, models.Sentence{
			Text:       item.Text,
			BeginMs:    item.BeginTime,
			EndMs:      item.EndTime,
			Confidence: item.Confidence,
		})
	}

	return sentences
}

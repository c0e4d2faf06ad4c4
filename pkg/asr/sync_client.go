package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

const (
	// DefaultBaseURL 识别后端基础URL
	DefaultBaseURL = "https://asr.lecture-api.com"

	// 同步识别API路径
	apiRecognize = "/api/v1/asr/recognize"
)

// SyncTranscriber 同步识别策略：单次请求/响应完成一个分片的识别
type SyncTranscriber struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSyncTranscriber 创建同步识别策略实例
func NewSyncTranscriber() *SyncTranscriber {
	return &SyncTranscriber{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Name 实现Transcriber接口
func (s *SyncTranscriber) Name() string {
	return "sync"
}

// syncResponse 同步识别API的响应结构
type syncResponse struct {
	Sentences []struct {
		Text       string  `json:"text"`
		BeginTime  int64   `json:"begin_time"`
		EndTime    int64   `json:"end_time"`
		Confidence float64 `json:"confidence"`
	} `json:"sentences"`
}

// Transcribe 实现Transcriber接口，提交二进制音频并解析句子列表
func (s *SyncTranscriber) Transcribe(ctx context.Context, req Request, callback ProgressCallback) ([]models.Sentence, error) {
	payload, err := LoadPayload(req.AudioPath)
	if err != nil {
		return nil, err
	}

	if callback != nil {
		callback(30, "正在识别...")
	}

	// 创建multipart表单
	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	if err := writer.WriteField("language", req.Language); err != nil {
		return nil, fmt.Errorf("写入表单字段失败: %w", err)
	}

	part, err := writer.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, fmt.Errorf("创建表单文件失败: %w", err)
	}
	if _, err := part.Write(payload.FileBinary); err != nil {
		return nil, fmt.Errorf("写入文件数据失败: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("关闭表单写入器失败: %w", err)
	}

	// 创建请求
	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.BaseURL+apiRecognize, &requestBody)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	// 发送请求
	resp, err := s.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("识别后端返回错误状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	var result syncResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析响应JSON失败: %w", err)
	}

	if callback != nil {
		callback(100, "识别完成")
	}

	return s.makeSentences(&result), nil
}

// makeSentences 处理识别结果
func (s *SyncTranscriber) makeSentences(resp *syncResponse) []models.Sentence {
	sentences := make([]models.Sentence, 0, len(resp.Sentences))

	for _, item := range resp.Sentences {
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

	utils.Debug("同步识别返回 %d 句", len(sentences))
	return sentences
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// TutorClient 封装对答疑大模型API的访问
// 回答文本会交给引用定位器还原时间范围，因此提示词要求模型带引号和时间标记
type TutorClient struct {
	APIKey     string
	BaseURL    string
	Model      string
	HttpClient *http.Client
}

// ChatMessage 表示聊天消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 表示对API的请求
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// ChatResponse 表示API的响应
type ChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

const tutorSystemPrompt = "你是一名课堂答疑助教。根据提供的课堂转写内容回答学生的问题。" +
	"引用老师的原话时必须用中文引号包裹，并在引用附近标注形如[mm:ss-mm:ss]的时间范围。"

// NewTutorClient 创建一个新的答疑客户端
func NewTutorClient(apiKey string) *TutorClient {
	return &TutorClient{
		APIKey:  apiKey,
		BaseURL: "https://ark.cn-beijing.volces.com",
		Model:   "doubao-1-5-pro-256k-250115",
		HttpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// AnswerQuestion 基于课堂转写回答学生提问，返回模型的自由文本回答
func (c *TutorClient) AnswerQuestion(ctx context.Context, transcript, question string) (string, error) {
	messages := []ChatMessage{
		{Role: "system", Content: tutorSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("课堂转写：\n%s\n\n学生提问：%s", transcript, question)},
	}
	return c.chat(ctx, messages)
}

// GenerateSummary 对课堂转写生成简明摘要
func (c *TutorClient) GenerateSummary(ctx context.Context, transcript string) (string, error) {
	messages := []ChatMessage{
		{Role: "system", Content: "你是一个专业的文字总结助手。请对以下课堂转写进行简明扼要的总结，提取关键信息和主要观点。"},
		{Role: "user", Content: transcript},
	}
	return c.chat(ctx, messages)
}

func (c *TutorClient) chat(ctx context.Context, messages []ChatMessage) (string, error) {
	url := c.BaseURL + "/api/v3/chat/completions"

	requestBody := ChatRequest{
		Model:    c.Model,
		Messages: messages,
	}

	jsonBytes, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBytes))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	utils.Info("发送API请求到 %s", url)
	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API返回错误状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	var response ChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}

	if len(response.Choices) > 0 {
		return response.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("API响应中没有生成内容")
}

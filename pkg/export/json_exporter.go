package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// TimelineSegment 导出的时间轴段落
type TimelineSegment struct {
	ID         string  `json:"id"`
	StartMs    int64   `json:"start_ms"`   // 开始时间（毫秒）
	EndMs      int64   `json:"end_ms"`     // 结束时间（毫秒）
	Text       string  `json:"text"`       // 该段文字
	Confidence float64 `json:"confidence"` // 识别置信度
}

// TimelineResult 导出的完整时间轴
type TimelineResult struct {
	SessionID  string            `json:"session_id"`
	Language   string            `json:"language,omitempty"` // 识别语言（如 "zh"、"en"）
	FullText   string            `json:"full_text"`          // 完整合并后的文本（用于摘要）
	DurationMs int64             `json:"duration_ms"`        // 录音总时长（毫秒）
	Segments   []TimelineSegment `json:"segments"`           // 分段结构，适合前端显示时间轴字幕等
}

// JSONExporter 负责将时间轴导出为JSON文件
type JSONExporter struct {
	OutputFolder string
	Language     string
}

// NewJSONExporter 创建一个新的JSON导出器
func NewJSONExporter(outputFolder, language string) *JSONExporter {
	return &JSONExporter{
		OutputFolder: outputFolder,
		Language:     language,
	}
}

// GenerateJSONContent 根据段落生成TimelineResult结构
func (e *JSONExporter) GenerateJSONContent(sessionID string, segments []models.TranscriptSegment, durationMs int64) TimelineResult {
	result := TimelineResult{
		SessionID:  sessionID,
		Language:   e.Language,
		DurationMs: durationMs,
		Segments:   make([]TimelineSegment, 0, len(segments)),
	}

	var fullTextBuilder strings.Builder
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}

		if fullTextBuilder.Len() > 0 {
			fullTextBuilder.WriteString(" ")
		}
		fullTextBuilder.WriteString(text)

		result.Segments = append(result.Segments, TimelineSegment{
			ID:         segment.ID,
			StartMs:    segment.StartMs,
			EndMs:      segment.EndMs,
			Text:       text,
			Confidence: segment.Confidence,
		})
	}

	result.FullText = fullTextBuilder.String()
	return result
}

// ExportJSON 导出JSON格式文件
func (e *JSONExporter) ExportJSON(sessionID string, segments []models.TranscriptSegment, durationMs int64) (string, error) {
	if err := os.MkdirAll(e.OutputFolder, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	outputFile := filepath.Join(e.OutputFolder, fmt.Sprintf("%s_timeline.json", sessionID))
	content := e.GenerateJSONContent(sessionID, segments, durationMs)

	jsonData, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return "", fmt.Errorf("JSON编码失败: %w", err)
	}

	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		return "", fmt.Errorf("写入JSON文件失败: %w", err)
	}

	utils.Info("已导出JSON时间轴: %s", outputFile)
	return outputFile, nil
}

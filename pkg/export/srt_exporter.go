package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// SRTExporter 负责将时间轴段落导出为SRT字幕文件
type SRTExporter struct {
	OutputFolder string
}

// NewSRTExporter 创建一个新的SRT导出器
func NewSRTExporter(outputFolder string) *SRTExporter {
	return &SRTExporter{
		OutputFolder: outputFolder,
	}
}

// FormatSRTTime 将毫秒格式化为SRT时间格式 (HH:MM:SS,mmm)
func (e *SRTExporter) FormatSRTTime(ms int64) string {
	hours := ms / 3600000
	minutes := (ms % 3600000) / 60000
	secs := (ms % 60000) / 1000
	milliseconds := ms % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, milliseconds)
}

// GenerateSRTContent 生成SRT格式内容
func (e *SRTExporter) GenerateSRTContent(segments []models.TranscriptSegment) string {
	var srtLines []string
	index := 0

	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}

		startMs := segment.StartMs
		endMs := segment.EndMs
		if endMs <= startMs {
			// 确保结束时间大于开始时间，至少补足1秒
			endMs = startMs + 1000
		}

		index++
		srtLines = append(srtLines, fmt.Sprintf("%d", index))
		srtLines = append(srtLines, fmt.Sprintf("%s --> %s", e.FormatSRTTime(startMs), e.FormatSRTTime(endMs)))
		srtLines = append(srtLines, text)
		srtLines = append(srtLines, "") // 空行分隔
	}

	return strings.Join(srtLines, "\n")
}

// ExportSRT 导出SRT格式字幕文件
func (e *SRTExporter) ExportSRT(segments []models.TranscriptSegment, sessionID string) (string, error) {
	if err := os.MkdirAll(e.OutputFolder, 0755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	outputFile := filepath.Join(e.OutputFolder, fmt.Sprintf("%s.srt", sessionID))
	srtContent := e.GenerateSRTContent(segments)

	if err := os.WriteFile(outputFile, []byte(srtContent), 0644); err != nil {
		return "", fmt.Errorf("写入SRT文件失败: %w", err)
	}

	utils.Info("已导出SRT字幕: %s", outputFile)
	return outputFile, nil
}

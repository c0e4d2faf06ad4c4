package models

// TranscribeResult 一次课堂录音转写的结果统计信息
type TranscribeResult struct {
	SessionID     string              `json:"session_id"`      // 课堂会话ID
	Segments      []TranscriptSegment `json:"segments"`        // 最终时间轴文本段
	TotalChunks   int                 `json:"total_chunks"`    // 分片总数
	FailedChunks  []int               `json:"failed_chunks"`   // 识别失败的分片序号
	OutputFiles   map[string]string   `json:"output_files"`    // 导出文件路径
	DurationMs    int64               `json:"duration_ms"`     // 录音时长（毫秒）
	ProcessTimeMs int64               `json:"process_time_ms"` // 处理时间（毫秒）
}

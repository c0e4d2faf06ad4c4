package models

import "time"

// 锚点类型常量
const (
	AnchorTypeConfusion = "confusion" // 疑难
	AnchorTypeImportant = "important" // 重点
	AnchorTypeQuestion  = "question"  // 提问
)

// 锚点状态常量
const (
	AnchorStatusActive    = "active"
	AnchorStatusCancelled = "cancelled"
	AnchorStatusResolved  = "resolved"
)

// ConfusionAnchor 表示学生在时间轴上打下的标记，只做状态流转、从不硬删除
type ConfusionAnchor struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	StudentID   string    `json:"student_id"`
	TimestampMs int64     `json:"timestamp_ms"` // 相对课堂录音的时间点（毫秒）
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConfusionHotspot 表示一个时间窗口内的疑难聚合结果，每次请求现算、不持久化
type ConfusionHotspot struct {
	WindowStartMs        int64  `json:"window_start_ms"`
	WindowEndMs          int64  `json:"window_end_ms"`
	DistinctStudentCount int    `json:"distinct_student_count"`
	ResolvedCount        int    `json:"resolved_count"`
	ResolvedRate         int    `json:"resolved_rate"` // 百分比，四舍五入
	Rank                 int    `json:"rank"`
	Excerpt              string `json:"excerpt"` // 窗口对应的转写摘录
}

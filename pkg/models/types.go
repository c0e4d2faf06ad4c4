package models

// Sentence 表示单个分片内识别出的一句话，时间为分片内相对毫秒
type Sentence struct {
	Text       string  `json:"text"`       // 识别出的文本内容
	BeginMs    int64   `json:"begin_ms"`   // 分片内开始时间（毫秒）
	EndMs      int64   `json:"end_ms"`     // 分片内结束时间（毫秒）
	Confidence float64 `json:"confidence"` // 识别置信度
}

// AudioChunk 表示一个待识别的音频分片，由切片器创建、识别客户端消费后丢弃
type AudioChunk struct {
	Index             int    // 分片序号，从0开始
	StartOffsetMs     int64  // 在整段录音中的绝对起始偏移（毫秒）
	NominalDurationMs int64  // 名义时长（毫秒），失败时仍按此推进时间轴
	Path              string // 重编码后的临时文件路径
}

// TranscriptSegment 表示时间轴上的最终文本段，绝对时间、按StartMs有序且不重叠
type TranscriptSegment struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	StartMs    int64   `json:"start_ms"`
	EndMs      int64   `json:"end_ms"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"is_final"`
}

// GroundedCitation 表示一条AI回答引用在时间轴上的定位结果
type GroundedCitation struct {
	QuotedText      string  `json:"quoted_text"`
	StartMs         int64   `json:"start_ms"`
	EndMs           int64   `json:"end_ms"`
	MatchConfidence float64 `json:"match_confidence"`
}

package timeline

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
	"github.com/google/uuid"
)

// ChunkSentences 一个分片的识别产出及其绝对起始偏移
// 识别失败的分片Sentences为空，但其名义时长已体现在后续分片的偏移里，
// 失败不会挤动后续时间戳
type ChunkSentences struct {
	Index         int
	StartOffsetMs int64
	Sentences     []models.Sentence
}

// Assembler 时间轴装配器，将分片相对时间的句子归位到绝对时间轴并合并成段
type Assembler struct {
	MergeGapMs         int64 // 相邻句子允许合并的最大间隔
	MergeMaxDurationMs int64 // 合并后段落的最大时长
	MinSegmentChars    int   // 合并后段落的最小字符数，低于则丢弃
}

// NewAssembler 创建时间轴装配器
func NewAssembler(config *models.Config) *Assembler {
	return &Assembler{
		MergeGapMs:         config.MergeGapMs,
		MergeMaxDurationMs: config.MergeMaxDurationMs,
		MinSegmentChars:    config.MinSegmentChars,
	}
}

// Assemble 装配绝对时间轴
// 输入按分片序号排列；输出段落严格按StartMs非递减排序且互不重叠
func (a *Assembler) Assemble(chunks []ChunkSentences) []models.TranscriptSegment {
	// 1. 偏移校正：把分片内相对时间换算为录音绝对时间
	corrected := make([]models.Sentence, 0)
	for _, chunk := range chunks {
		for _, s := range chunk.Sentences {
			if strings.TrimSpace(s.Text) == "" {
				continue
			}
			corrected = append(corrected, models.Sentence{
				Text:       s.Text,
				BeginMs:    chunk.StartOffsetMs + s.BeginMs,
				EndMs:      chunk.StartOffsetMs + s.EndMs,
				Confidence: s.Confidence,
			})
		}
	}

	if len(corrected) == 0 {
		return nil
	}

	// 后端偶尔给出乱序句子，合并前先稳定排序，合并本身不再改变顺序
	sort.SliceStable(corrected, func(i, j int) bool {
		return corrected[i].BeginMs < corrected[j].BeginMs
	})

	// 2. 句子合并：间隔小且合并后时长不超限的相邻句子归为一段
	var segments []models.TranscriptSegment

	current := newPending(corrected[0])
	for _, s := range corrected[1:] {
		gap := s.BeginMs - current.endMs
		mergedEnd := s.EndMs
		if current.endMs > mergedEnd {
			mergedEnd = current.endMs
		}
		mergedDuration := mergedEnd - current.startMs

		// 跨分片边界的句子会被下一分片重听一遍，负间隔视为重叠、同样合并
		if gap < a.MergeGapMs && mergedDuration <= a.MergeMaxDurationMs {
			current.absorb(s)
			continue
		}

		if seg, ok := a.finalize(current); ok {
			segments = append(segments, seg)
		}
		next := newPending(s)
		// 因时长上限被迫分段的重叠句子，起点夹到上一段终点，段落保持互不重叠
		if next.startMs < current.endMs {
			next.startMs = current.endMs
		}
		current = next
	}

	if seg, ok := a.finalize(current); ok {
		segments = append(segments, seg)
	}

	utils.Debug("装配完成: %d 句合并为 %d 段", len(corrected), len(segments))
	return segments
}

// pending 正在累积的段落
type pending struct {
	parts           []string
	startMs, endMs  int64
	confidenceSum   float64
	confidenceCount int
}

func newPending(s models.Sentence) *pending {
	return &pending{
		parts:           []string{normalizeText(s.Text)},
		startMs:         s.BeginMs,
		endMs:           s.EndMs,
		confidenceSum:   s.Confidence,
		confidenceCount: 1,
	}
}

func (p *pending) absorb(s models.Sentence) {
	p.parts = append(p.parts, normalizeText(s.Text))
	if s.EndMs > p.endMs {
		p.endMs = s.EndMs
	}
	p.confidenceSum += s.Confidence
	p.confidenceCount++
}

// finalize 产出段落；过短的段落被丢弃
func (a *Assembler) finalize(p *pending) (models.TranscriptSegment, bool) {
	text := strings.Join(p.parts, "")

	if len([]rune(text)) < a.MinSegmentChars {
		utils.Debug("丢弃过短段落: %q", text)
		return models.TranscriptSegment{}, false
	}

	return models.TranscriptSegment{
		ID:         uuid.New().String(),
		Text:       text,
		StartMs:    p.startMs,
		EndMs:      p.endMs,
		Confidence: p.confidenceSum / float64(p.confidenceCount),
		IsFinal:    true,
	}, true
}

// normalizeText 压缩多余空白并补齐句尾标点
func normalizeText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return text
	}

	last, _ := utf8.DecodeLastRuneInString(text)
	switch last {
	case '。', '！', '？', '，', '.', '!', '?', ',', ';', '；':
		return text
	}
	return text + "。"
}

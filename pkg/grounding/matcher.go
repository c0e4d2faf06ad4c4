package grounding

import (
	"github.com/ccp-p/classroom-timeline/pkg/models"
)

// 逐级放宽的时间容差，吸收模型给出的时间戳漂移
var defaultTolerances = []int64{10000, 30000}

// 引用与时间标记就近配对的最大字节距离，约二十个汉字
// 超过这个距离的时间标记通常描述的是另一个引用
const maxPairDistance = 60

// Matcher 引用定位器，把AI回答中的引用文本定位回转写时间轴
// 纯函数计算：相同的(回答, 段落)输入永远产出相同的引用集合
type Matcher struct {
	Tolerances []int64 // 一级匹配的容差序列（毫秒）
	MinScore   float64 // 二级文本相似度兜底的最低得分
}

// NewMatcher 创建引用定位器
func NewMatcher(config *models.Config) *Matcher {
	return &Matcher{
		Tolerances: defaultTolerances,
		MinScore:   config.MatchThreshold,
	}
}

// GroundCitations 为回答文本中的每个引用恢复真实时间范围
// 回答中的多个引用相互独立处理；定位失败是正常的零结果，不是错误
func (m *Matcher) GroundCitations(responseText string, segments []models.TranscriptSegment) []models.GroundedCitation {
	spans := ExtractSpans(responseText)

	var quotes []Span
	var timeRanges []Span
	for _, span := range spans {
		if span.Kind == SpanQuote {
			quotes = append(quotes, span)
		} else {
			timeRanges = append(timeRanges, span)
		}
	}

	var citations []models.GroundedCitation
	for _, quote := range quotes {
		if citation, ok := m.groundOne(quote, timeRanges, segments); ok {
			citations = append(citations, citation)
		}
	}

	return citations
}

// groundOne 为单个引用定位时间范围，一级命中即停，二级只做兜底
func (m *Matcher) groundOne(quote Span, timeRanges []Span, segments []models.TranscriptSegment) (models.GroundedCitation, bool) {
	// 一级：回答中有显式时间标记时，永远优先于文本相似度，
	// 即使别处存在文本上更相近的段落
	if claimed, ok := nearestTimeRange(quote, timeRanges); ok {
		if citation, ok := m.matchByTimeRange(quote, claimed, segments); ok {
			return citation, true
		}
	}

	// 二级：词元重叠度兜底
	return m.matchBySimilarity(quote, segments)
}

// nearestTimeRange 找到与引用在文本中距离最近的时间标记
func nearestTimeRange(quote Span, timeRanges []Span) (Span, bool) {
	best := -1
	bestDistance := 0
	for i, tr := range timeRanges {
		distance := tr.Pos - quote.Pos
		if distance < 0 {
			distance = -distance
		}
		if best < 0 || distance < bestDistance {
			best = i
			bestDistance = distance
		}
	}
	if best < 0 || bestDistance > maxPairDistance {
		return Span{}, false
	}
	return timeRanges[best], true
}

// matchByTimeRange 按声称的时间范围查找重叠段落，容差逐级放宽
func (m *Matcher) matchByTimeRange(quote, claimed Span, segments []models.TranscriptSegment) (models.GroundedCitation, bool) {
	tolerances := m.Tolerances
	if len(tolerances) == 0 {
		tolerances = defaultTolerances
	}

	for level, tolerance := range tolerances {
		lo := claimed.StartMs - tolerance
		hi := claimed.EndMs + tolerance

		var startMs, endMs int64
		found := false
		for _, seg := range segments {
			if seg.EndMs < lo || seg.StartMs > hi {
				continue
			}
			if !found || seg.StartMs < startMs {
				startMs = seg.StartMs
			}
			if !found || seg.EndMs > endMs {
				endMs = seg.EndMs
			}
			found = true
		}

		if found {
			// 容差放得越宽，置信度越低
			confidence := 0.9 - 0.2*float64(level)
			return models.GroundedCitation{
				QuotedText:      quote.Text,
				StartMs:         startMs,
				EndMs:           endMs,
				MatchConfidence: confidence,
			}, true
		}
	}

	return models.GroundedCitation{}, false
}

// matchBySimilarity 在全部段落中找词元重叠度最高者，低于阈值则视为无匹配
func (m *Matcher) matchBySimilarity(quote Span, segments []models.TranscriptSegment) (models.GroundedCitation, bool) {
	quoteTokens := TokenSet(quote.Text)
	if len(quoteTokens) == 0 {
		return models.GroundedCitation{}, false
	}

	bestScore := 0.0
	bestIndex := -1
	for i, seg := range segments {
		score := Jaccard(quoteTokens, TokenSet(seg.Text))
		if score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}

	if bestIndex < 0 || bestScore < m.MinScore {
		return models.GroundedCitation{}, false
	}

	best := segments[bestIndex]
	return models.GroundedCitation{
		QuotedText:      quote.Text,
		StartMs:         best.StartMs,
		EndMs:           best.EndMs,
		MatchConfidence: bestScore,
	}, true
}

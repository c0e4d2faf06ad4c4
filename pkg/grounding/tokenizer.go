package grounding

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// SpanKind 候选片段类型
type SpanKind int

const (
	// SpanQuote 引号包裹的引用文本
	SpanQuote SpanKind = iota
	// SpanTimeRange 形如[mm:ss-mm:ss]的显式时间标记
	SpanTimeRange
)

// Span 从AI回答自由文本中提取出的一个候选片段
type Span struct {
	Kind    SpanKind
	Text    string // 引用文本（SpanQuote）
	StartMs int64  // 标记起始时间（SpanTimeRange）
	EndMs   int64  // 标记结束时间（SpanTimeRange）
	Pos     int    // 在原文中的字节位置，用于就近关联
}

var (
	// 中英文引号包裹的引用，如 “…” 「…」 "…"
	quotePattern = regexp.MustCompile(`“([^”]+)”|「([^」]+)」|"([^"]+)"`)

	// 方括号时间标记，支持区间[mm:ss-mm:ss]与单点[mm:ss]
	timePattern = regexp.MustCompile(`\[(\d{1,3}):([0-5]\d)(?:\s*[-~]\s*(\d{1,3}):([0-5]\d))?\]`)
)

// ExtractSpans 把自由文本解析为类型化的候选片段列表，按出现位置排序
// 拆出独立的解析层，分层匹配算法可以脱离文本解析单独测试
func ExtractSpans(text string) []Span {
	var spans []Span

	for _, m := range quotePattern.FindAllStringSubmatchIndex(text, -1) {
		// 三组引号样式中命中的那组
		var quoted string
		for g := 1; g <= 3; g++ {
			if m[2*g] >= 0 {
				quoted = text[m[2*g]:m[2*g+1]]
				break
			}
		}
		quoted = strings.TrimSpace(quoted)
		if quoted == "" {
			continue
		}
		spans = append(spans, Span{Kind: SpanQuote, Text: quoted, Pos: m[0]})
	}

	for _, m := range timePattern.FindAllStringSubmatchIndex(text, -1) {
		startMs := clockToMs(text[m[2]:m[3]], text[m[4]:m[5]])
		endMs := startMs
		if m[6] >= 0 {
			endMs = clockToMs(text[m[6]:m[7]], text[m[8]:m[9]])
		}
		if endMs < startMs {
			// 倒置的区间视为无效标记
			continue
		}
		spans = append(spans, Span{Kind: SpanTimeRange, StartMs: startMs, EndMs: endMs, Pos: m[0]})
	}

	// 按出现位置排序，便于引用与时间标记就近配对
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].Pos < spans[j-1].Pos; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}

	return spans
}

func clockToMs(minutes, seconds string) int64 {
	m, _ := strconv.ParseInt(minutes, 10, 64)
	s, _ := strconv.ParseInt(seconds, 10, 64)
	return (m*60 + s) * 1000
}

// TokenSet 把文本切为用于重叠度计算的词元集合：
// 连续的拉丁字母/数字作为一个词元（小写），每个汉字单独作为词元，标点与空白丢弃
func TokenSet(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens[strings.ToLower(word.String())] = struct{}{}
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			word.WriteRune(r)
		case unicode.Is(unicode.Han, r):
			flush()
			tokens[string(r)] = struct{}{}
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// Jaccard 计算两个词元集合的交并比
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

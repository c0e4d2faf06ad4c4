package hotspot

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// Aggregator 疑难热点聚合器
// 结果每次请求现算，绝不缓存：锚点状态随时在变，陈旧的热点排名会误导老师
type Aggregator struct {
	WindowSizeMs int64 // 聚合窗口大小（毫秒）
	TopN         int   // 返回的热点数量上限
	ExcerptChars int   // 摘录的字符预算
}

// NewAggregator 创建热点聚合器
func NewAggregator(config *models.Config) *Aggregator {
	return &Aggregator{
		WindowSizeMs: config.WindowSizeMs,
		TopN:         config.HotspotTopN,
		ExcerptChars: config.ExcerptChars,
	}
}

// bucket 单个窗口的聚合中间态
type bucket struct {
	windowStart int64
	students    map[string]struct{}
	total       int // 窗口内未撤销的锚点总数
	resolved    int // 其中已解决的锚点数
}

// ComputeHotspots 把锚点按时间窗口聚合成热点排名
// 排名键是去重后的学生人数：同一个学生反复点击只算一次，
// 避免单人刷点把窗口顶到榜首
func (a *Aggregator) ComputeHotspots(anchors []models.ConfusionAnchor, segments []models.TranscriptSegment) ([]models.ConfusionHotspot, error) {
	if a.WindowSizeMs <= 0 {
		return nil, &utils.InvalidWindowSizeError{WindowSizeMs: a.WindowSizeMs}
	}

	// 1. 按窗口起点分桶，撤销的锚点完全排除
	buckets := make(map[int64]*bucket)
	for _, anchor := range anchors {
		if anchor.Status == models.AnchorStatusCancelled {
			continue
		}

		windowStart := (anchor.TimestampMs / a.WindowSizeMs) * a.WindowSizeMs
		b, ok := buckets[windowStart]
		if !ok {
			b = &bucket{
				windowStart: windowStart,
				students:    make(map[string]struct{}),
			}
			buckets[windowStart] = b
		}

		b.students[anchor.StudentID] = struct{}{}
		b.total++
		if anchor.Status == models.AnchorStatusResolved {
			b.resolved++
		}
	}

	if len(buckets) == 0 {
		return nil, nil
	}

	// 2. 降序排列，人数相同的窗口按起点升序保证结果稳定
	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if len(ordered[i].students) != len(ordered[j].students) {
			return len(ordered[i].students) > len(ordered[j].students)
		}
		return ordered[i].windowStart < ordered[j].windowStart
	})

	if a.TopN > 0 && len(ordered) > a.TopN {
		ordered = ordered[:a.TopN]
	}

	// 3. 生成排名结果并附带转写摘录
	hotspots := make([]models.ConfusionHotspot, 0, len(ordered))
	for i, b := range ordered {
		hotspots = append(hotspots, models.ConfusionHotspot{
			WindowStartMs:        b.windowStart,
			WindowEndMs:          b.windowStart + a.WindowSizeMs,
			DistinctStudentCount: len(b.students),
			ResolvedCount:        b.resolved,
			ResolvedRate:         resolvedRate(b.resolved, b.total),
			Rank:                 i + 1,
			Excerpt:              a.excerptFor(b.windowStart, b.windowStart+a.WindowSizeMs, segments),
		})
	}

	return hotspots, nil
}

// resolvedRate 计算已解决百分比，四舍五入到整数
func resolvedRate(resolved, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(resolved) / float64(total) * 100))
}

// excerptFor 拼接与窗口重叠的转写段落，超出预算时按字符截断
func (a *Aggregator) excerptFor(startMs, endMs int64, segments []models.TranscriptSegment) string {
	var excerpt string
	for _, seg := range segments {
		if seg.EndMs < startMs || seg.StartMs > endMs {
			continue
		}
		excerpt += seg.Text
		if a.ExcerptChars > 0 && utf8.RuneCountInString(excerpt) >= a.ExcerptChars {
			break
		}
	}

	if a.ExcerptChars > 0 && utf8.RuneCountInString(excerpt) > a.ExcerptChars {
		runes := []rune(excerpt)
		excerpt = string(runes[:a.ExcerptChars-1]) + "…"
	}

	return excerpt
}

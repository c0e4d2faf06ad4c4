package hotspot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

func anchorAt(student string, timestampMs int64, status string) models.ConfusionAnchor {
	return models.ConfusionAnchor{
		ID:          student + "-anchor",
		SessionID:   "session-1",
		StudentID:   student,
		TimestampMs: timestampMs,
		Type:        models.AnchorTypeConfusion,
		Status:      status,
	}
}

func TestComputeHotspots_SingleWindow(t *testing.T) {
	agg := NewAggregator(models.NewDefaultConfig())

	// 1. 同一个30秒窗口内3名学生，其中2人已解决
	anchors := []models.ConfusionAnchor{
		anchorAt("stu-a", 61000, models.AnchorStatusResolved),
		anchorAt("stu-b", 65000, models.AnchorStatusResolved),
		anchorAt("stu-c", 89000, models.AnchorStatusActive),
	}

	hotspots, err := agg.ComputeHotspots(anchors, nil)
	assert.NoError(t, err)
	assert.Len(t, hotspots, 1)

	assert.Equal(t, int64(60000), hotspots[0].WindowStartMs)
	assert.Equal(t, int64(90000), hotspots[0].WindowEndMs)
	assert.Equal(t, 3, hotspots[0].DistinctStudentCount)
	assert.Equal(t, 2, hotspots[0].ResolvedCount)
	assert.Equal(t, 67, hotspots[0].ResolvedRate)
	assert.Equal(t, 1, hotspots[0].Rank)
}

func TestComputeHotspots_DistinctStudents(t *testing.T) {
	agg := NewAggregator(models.NewDefaultConfig())

	// 单人在同一窗口反复点击，去重后只算一个学生
	anchors := []models.ConfusionAnchor{
		anchorAt("stu-a", 1000, models.AnchorStatusActive),
		anchorAt("stu-a", 5000, models.AnchorStatusActive),
		anchorAt("stu-a", 9000, models.AnchorStatusActive),
		anchorAt("stu-b", 31000, models.AnchorStatusActive),
		anchorAt("stu-c", 35000, models.AnchorStatusActive),
	}

	hotspots, err := agg.ComputeHotspots(anchors, nil)
	assert.NoError(t, err)
	assert.Len(t, hotspots, 2)

	// 两名学生的窗口排在单人刷点的窗口之前
	assert.Equal(t, int64(30000), hotspots[0].WindowStartMs)
	assert.Equal(t, 2, hotspots[0].DistinctStudentCount)
	assert.Equal(t, int64(0), hotspots[1].WindowStartMs)
	assert.Equal(t, 1, hotspots[1].DistinctStudentCount)
}

func TestComputeHotspots_CancelledExcluded(t *testing.T) {
	agg := NewAggregator(models.NewDefaultConfig())

	anchors := []models.ConfusionAnchor{
		anchorAt("stu-a", 1000, models.AnchorStatusCancelled),
		anchorAt("stu-b", 2000, models.AnchorStatusCancelled),
	}

	hotspots, err := agg.ComputeHotspots(anchors, nil)
	assert.NoError(t, err)
	assert.Empty(t, hotspots)
}

func TestComputeHotspots_TiesKeepWindowOrder(t *testing.T) {
	agg := NewAggregator(models.NewDefaultConfig())

	// 三个窗口人数相同，排名按窗口起点升序
	anchors := []models.ConfusionAnchor{
		anchorAt("stu-a", 95000, models.AnchorStatusActive),
		anchorAt("stu-b", 35000, models.AnchorStatusActive),
		anchorAt("stu-c", 5000, models.AnchorStatusActive),
	}

	hotspots, err := agg.ComputeHotspots(anchors, nil)
	assert.NoError(t, err)
	assert.Len(t, hotspots, 3)

	assert.Equal(t, int64(0), hotspots[0].WindowStartMs)
	assert.Equal(t, int64(30000), hotspots[1].WindowStartMs)
	assert.Equal(t, int64(90000), hotspots[2].WindowStartMs)
	assert.Equal(t, 1, hotspots[0].Rank)
	assert.Equal(t, 2, hotspots[1].Rank)
	assert.Equal(t, 3, hotspots[2].Rank)
}

func TestComputeHotspots_TopNCap(t *testing.T) {
	config := models.NewDefaultConfig()
	config.HotspotTopN = 2
	agg := NewAggregator(config)

	anchors := []models.ConfusionAnchor{
		anchorAt("stu-a", 5000, models.AnchorStatusActive),
		anchorAt("stu-b", 35000, models.AnchorStatusActive),
		anchorAt("stu-c", 65000, models.AnchorStatusActive),
		anchorAt("stu-d", 95000, models.AnchorStatusActive),
	}

	hotspots, err := agg.ComputeHotspots(anchors, nil)
	assert.NoError(t, err)
	assert.Len(t, hotspots, 2)
}

func TestComputeHotspots_Excerpt(t *testing.T) {
	agg := NewAggregator(models.NewDefaultConfig())

	segments := []models.TranscriptSegment{
		{ID: "s1", Text: "窗口之外的段落。", StartMs: 0, EndMs: 10000},
		{ID: "s2", Text: "窗口之内的第一句。", StartMs: 62000, EndMs: 70000},
		{ID: "s3", Text: "窗口之内的第二句。", StartMs: 71000, EndMs: 85000},
	}
	anchors := []models.ConfusionAnchor{
		anchorAt("stu-a", 65000, models.AnchorStatusActive),
	}

	hotspots, err := agg.ComputeHotspots(anchors, segments)
	assert.NoError(t, err)
	assert.Len(t, hotspots, 1)
	assert.Equal(t, "窗口之内的第一句。窗口之内的第二句。", hotspots[0].Excerpt)
}

func TestComputeHotspots_ExcerptTruncation(t *testing.T) {
	config := models.NewDefaultConfig()
	config.ExcerptChars = 5
	agg := NewAggregator(config)

	segments := []models.TranscriptSegment{
		{ID: "s1", Text: "这是一段很长的转写内容。", StartMs: 0, EndMs: 10000},
	}
	anchors := []models.ConfusionAnchor{
		anchorAt("stu-a", 1000, models.AnchorStatusActive),
	}

	hotspots, err := agg.ComputeHotspots(anchors, segments)
	assert.NoError(t, err)
	assert.Equal(t, "这是一段…", hotspots[0].Excerpt)
}

func TestComputeHotspots_InvalidWindowSize(t *testing.T) {
	agg := &Aggregator{WindowSizeMs: 0, TopN: 5}

	_, err := agg.ComputeHotspots(nil, nil)
	assert.Error(t, err)

	var windowErr *utils.InvalidWindowSizeError
	assert.ErrorAs(t, err, &windowErr)
}

func TestComputeHotspots_EmptyAnchors(t *testing.T) {
	agg := NewAggregator(models.NewDefaultConfig())

	hotspots, err := agg.ComputeHotspots(nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, hotspots)
}

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ccp-p/classroom-timeline/pkg/models"
)

func TestMemoryStore_Segments(t *testing.T) {
	store := NewMemoryStore(5000, "")

	segments := []models.TranscriptSegment{
		{ID: "s1", Text: "第一段。", StartMs: 0, EndMs: 5000},
		{ID: "s2", Text: "第二段。", StartMs: 6000, EndMs: 12000},
	}

	assert.NoError(t, store.SaveSegments("session-1", segments))

	got, err := store.GetSegments("session-1")
	assert.NoError(t, err)
	assert.Equal(t, segments, got)

	_, err = store.GetSegments("session-missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_AnchorLifecycle(t *testing.T) {
	store := NewMemoryStore(5000, "")

	anchor, err := store.CreateAnchor("session-1", "stu-a", 61000, models.AnchorTypeConfusion)
	assert.NoError(t, err)
	assert.NotEmpty(t, anchor.ID)
	assert.Equal(t, models.AnchorStatusActive, anchor.Status)

	// active状态下随时可以解决
	err = store.ResolveAnchor("session-1", anchor.ID, time.Now().Add(time.Hour))
	assert.NoError(t, err)

	anchors, err := store.ListAnchors("session-1")
	assert.NoError(t, err)
	assert.Len(t, anchors, 1)
	assert.Equal(t, models.AnchorStatusResolved, anchors[0].Status)

	// 已解决的锚点不能再撤销
	err = store.CancelAnchor("session-1", anchor.ID, time.Now())
	var transitionErr *AnchorTransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

func TestMemoryStore_CancelWithinGrace(t *testing.T) {
	store := NewMemoryStore(5000, "")

	anchor, err := store.CreateAnchor("session-1", "stu-a", 61000, models.AnchorTypeConfusion)
	assert.NoError(t, err)

	// 宽限期内允许撤销
	err = store.CancelAnchor("session-1", anchor.ID, anchor.CreatedAt.Add(3*time.Second))
	assert.NoError(t, err)

	anchors, _ := store.ListAnchors("session-1")
	assert.Equal(t, models.AnchorStatusCancelled, anchors[0].Status)
}

func TestMemoryStore_CancelAfterGraceRejected(t *testing.T) {
	store := NewMemoryStore(5000, "")

	anchor, err := store.CreateAnchor("session-1", "stu-a", 61000, models.AnchorTypeConfusion)
	assert.NoError(t, err)

	// 超过宽限期后拒绝撤销，锚点保持active
	err = store.CancelAnchor("session-1", anchor.ID, anchor.CreatedAt.Add(6*time.Second))
	var transitionErr *AnchorTransitionError
	assert.ErrorAs(t, err, &transitionErr)

	anchors, _ := store.ListAnchors("session-1")
	assert.Equal(t, models.AnchorStatusActive, anchors[0].Status)
}

func TestMemoryStore_NeverHardDeleted(t *testing.T) {
	store := NewMemoryStore(5000, "")

	anchor, _ := store.CreateAnchor("session-1", "stu-a", 1000, models.AnchorTypeConfusion)
	_ = store.CancelAnchor("session-1", anchor.ID, anchor.CreatedAt.Add(time.Second))

	// 撤销后锚点仍然可见，只是状态变化
	anchors, err := store.ListAnchors("session-1")
	assert.NoError(t, err)
	assert.Len(t, anchors, 1)
}

func TestMemoryStore_AnchorNotFound(t *testing.T) {
	store := NewMemoryStore(5000, "")
	_, _ = store.CreateAnchor("session-1", "stu-a", 1000, models.AnchorTypeConfusion)

	err := store.ResolveAnchor("session-1", "missing-id", time.Now())
	assert.ErrorIs(t, err, ErrAnchorNotFound)

	err = store.ResolveAnchor("session-missing", "missing-id", time.Now())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_SnapshotRoundTrip(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "snapshot.json")

	store := NewMemoryStore(5000, snapshotPath)
	_ = store.SaveSegments("session-1", []models.TranscriptSegment{
		{ID: "s1", Text: "第一段。", StartMs: 0, EndMs: 5000},
	})
	anchor, _ := store.CreateAnchor("session-1", "stu-a", 1000, models.AnchorTypeConfusion)

	restored := NewMemoryStore(5000, "")
	assert.NoError(t, restored.LoadSnapshot(snapshotPath))

	segments, err := restored.GetSegments("session-1")
	assert.NoError(t, err)
	assert.Len(t, segments, 1)

	anchors, err := restored.ListAnchors("session-1")
	assert.NoError(t, err)
	assert.Len(t, anchors, 1)
	assert.Equal(t, anchor.ID, anchors[0].ID)
}

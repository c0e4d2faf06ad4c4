package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// sessionData 单个会话的内存数据
type sessionData struct {
	segments []models.TranscriptSegment
	anchors  []models.ConfusionAnchor
}

// MemoryStore 基于内存的会话存储，并发安全
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      map[string]*sessionData
	cancelGraceMs int64
	snapshotPath  string // 非空时每次写入后落盘JSON快照
}

// NewMemoryStore 创建内存存储
// snapshotPath非空时，每次写入都会把全量数据落盘成JSON快照，便于进程重启后排查
func NewMemoryStore(cancelGraceMs int64, snapshotPath string) *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]*sessionData),
		cancelGraceMs: cancelGraceMs,
		snapshotPath:  snapshotPath,
	}
}

// SaveSegments 保存一个会话的转写段落
func (s *MemoryStore) SaveSegments(sessionID string, segments []models.TranscriptSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureSession(sessionID).segments = append([]models.TranscriptSegment(nil), segments...)
	return s.snapshotLocked()
}

// GetSegments 读取一个会话的全部转写段落
func (s *MemoryStore) GetSegments(sessionID string) ([]models.TranscriptSegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]models.TranscriptSegment(nil), data.segments...), nil
}

// CreateAnchor 创建一个active状态的锚点
func (s *MemoryStore) CreateAnchor(sessionID, studentID string, timestampMs int64, anchorType string) (*models.ConfusionAnchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor := models.ConfusionAnchor{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		StudentID:   studentID,
		TimestampMs: timestampMs,
		Type:        anchorType,
		Status:      models.AnchorStatusActive,
		CreatedAt:   time.Now(),
	}

	data := s.ensureSession(sessionID)
	data.anchors = append(data.anchors, anchor)

	if err := s.snapshotLocked(); err != nil {
		return nil, err
	}
	return &anchor, nil
}

// ResolveAnchor 把锚点标记为已解决
func (s *MemoryStore) ResolveAnchor(sessionID, anchorID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, err := s.findAnchorLocked(sessionID, anchorID)
	if err != nil {
		return err
	}

	if anchor.Status != models.AnchorStatusActive {
		return &AnchorTransitionError{
			AnchorID: anchorID,
			From:     anchor.Status,
			To:       models.AnchorStatusResolved,
			Reason:   "只有active状态的锚点可以被解决",
		}
	}

	anchor.Status = models.AnchorStatusResolved
	return s.snapshotLocked()
}

// CancelAnchor 撤销锚点，超过宽限期后拒绝
// 宽限期用于吞掉误触：超过之后锚点已经进入老师视野，不再允许消失
func (s *MemoryStore) CancelAnchor(sessionID, anchorID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, err := s.findAnchorLocked(sessionID, anchorID)
	if err != nil {
		return err
	}

	if anchor.Status != models.AnchorStatusActive {
		return &AnchorTransitionError{
			AnchorID: anchorID,
			From:     anchor.Status,
			To:       models.AnchorStatusCancelled,
			Reason:   "只有active状态的锚点可以被撤销",
		}
	}

	if now.Sub(anchor.CreatedAt).Milliseconds() > s.cancelGraceMs {
		return &AnchorTransitionError{
			AnchorID: anchorID,
			From:     anchor.Status,
			To:       models.AnchorStatusCancelled,
			Reason:   "已超过撤销宽限期",
		}
	}

	anchor.Status = models.AnchorStatusCancelled
	return s.snapshotLocked()
}

// ListAnchors 返回一个会话的全部锚点
func (s *MemoryStore) ListAnchors(sessionID string) ([]models.ConfusionAnchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]models.ConfusionAnchor(nil), data.anchors...), nil
}

func (s *MemoryStore) ensureSession(sessionID string) *sessionData {
	data, ok := s.sessions[sessionID]
	if !ok {
		data = &sessionData{}
		s.sessions[sessionID] = data
	}
	return data
}

func (s *MemoryStore) findAnchorLocked(sessionID, anchorID string) (*models.ConfusionAnchor, error) {
	data, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	for i := range data.anchors {
		if data.anchors[i].ID == anchorID {
			return &data.anchors[i], nil
		}
	}
	return nil, ErrAnchorNotFound
}

// snapshot 落盘用的全量快照结构
type snapshot struct {
	Sessions map[string]snapshotSession `json:"sessions"`
}

type snapshotSession struct {
	Segments []models.TranscriptSegment `json:"segments"`
	Anchors  []models.ConfusionAnchor   `json:"anchors"`
}

func (s *MemoryStore) snapshotLocked() error {
	if s.snapshotPath == "" {
		return nil
	}

	snap := snapshot{Sessions: make(map[string]snapshotSession, len(s.sessions))}
	for id, data := range s.sessions {
		snap.Sessions[id] = snapshotSession{Segments: data.segments, Anchors: data.anchors}
	}
	return utils.SaveJSONFile(s.snapshotPath, snap)
}

// LoadSnapshot 从JSON快照恢复全量数据，覆盖当前内存内容
func (s *MemoryStore) LoadSnapshot(path string) error {
	var snap snapshot
	if err := utils.LoadJSONInto(path, &snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*sessionData, len(snap.Sessions))
	for id, data := range snap.Sessions {
		s.sessions[id] = &sessionData{segments: data.Segments, anchors: data.Anchors}
	}
	return nil
}

package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/ccp-p/classroom-timeline/pkg/models"
)

// ErrAnchorNotFound 指定的锚点不存在
var ErrAnchorNotFound = errors.New("锚点不存在")

// ErrSessionNotFound 指定的课堂会话不存在
var ErrSessionNotFound = errors.New("课堂会话不存在")

// AnchorTransitionError 非法的锚点状态流转
type AnchorTransitionError struct {
	AnchorID string
	From     string
	To       string
	Reason   string
}

func (e *AnchorTransitionError) Error() string {
	return fmt.Sprintf("锚点 %s 无法从 %s 流转到 %s: %s", e.AnchorID, e.From, e.To, e.Reason)
}

// SessionStore 课堂会话数据的读写接口
// 锚点只做状态流转、从不硬删除，撤销和解决都通过状态字段表达
type SessionStore interface {
	// SaveSegments 保存一个会话的转写段落，覆盖同会话的旧数据
	SaveSegments(sessionID string, segments []models.TranscriptSegment) error

	// GetSegments 读取一个会话的全部转写段落
	GetSegments(sessionID string) ([]models.TranscriptSegment, error)

	// CreateAnchor 创建一个active状态的锚点并返回其ID
	CreateAnchor(sessionID, studentID string, timestampMs int64, anchorType string) (*models.ConfusionAnchor, error)

	// ResolveAnchor 把锚点标记为已解决，active状态下随时允许
	ResolveAnchor(sessionID, anchorID string, now time.Time) error

	// CancelAnchor 撤销锚点，只在创建后的宽限期内允许
	CancelAnchor(sessionID, anchorID string, now time.Time) error

	// ListAnchors 返回一个会话的全部锚点，包含已撤销和已解决的
	ListAnchors(sessionID string) ([]models.ConfusionAnchor, error)
}

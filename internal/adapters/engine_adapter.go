package adapters

import (
	"sync"

	"github.com/ccp-p/classroom-timeline/internal/controller"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// EngineAdapter 把时间轴引擎接到文件夹监控器上，实现FileEventHandler接口
type EngineAdapter struct {
	Engine *controller.Engine

	mu        sync.Mutex
	processed map[string]bool
}

// NewEngineAdapter 创建新的引擎适配器
func NewEngineAdapter(engine *controller.Engine) *EngineAdapter {
	return &EngineAdapter{
		Engine:    engine,
		processed: make(map[string]bool),
	}
}

// OnRecordingReady 处理就绪的录音文件
// 去抖后同一文件可能再次触发，用已处理记录做幂等保护
func (a *EngineAdapter) OnRecordingReady(filePath string) {
	a.mu.Lock()
	if a.processed[filePath] {
		a.mu.Unlock()
		utils.Debug("录音已处理过，跳过: %s", filePath)
		return
	}
	a.processed[filePath] = true
	a.mu.Unlock()

	if _, err := a.Engine.TranscribeSession(filePath); err != nil {
		utils.Error("处理录音失败 %s: %v", filePath, err)

		// 失败的录音允许下次事件重试
		a.mu.Lock()
		delete(a.processed, filePath)
		a.mu.Unlock()
	}
}

// IsProcessed 检查录音是否已被处理
func (a *EngineAdapter) IsProcessed(filePath string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processed[filePath]
}

package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// FileEventHandler 是处理录音文件事件的接口
type FileEventHandler interface {
	OnRecordingReady(filePath string)
}

// FolderMonitor 监控录音文件夹变化
// 录音通常由录播设备分段写入，用去抖定时器等文件稳定后再触发处理
type FolderMonitor struct {
	watcher        *fsnotify.Watcher
	folderPath     string
	fileExtensions []string
	handler        FileEventHandler
	debounceTime   time.Duration
	pendingFiles   map[string]*time.Timer
	mutex          sync.Mutex
	stopChan       chan struct{}
	stopOnce       sync.Once
}

// NewFolderMonitor 创建新的录音文件夹监控器
func NewFolderMonitor(folderPath string, extensions []string, handler FileEventHandler, debounceTime time.Duration) (*FolderMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	monitor := &FolderMonitor{
		watcher:        watcher,
		folderPath:     folderPath,
		fileExtensions: extensions,
		handler:        handler,
		debounceTime:   debounceTime,
		pendingFiles:   make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}

	return monitor, nil
}

// Start 开始监控文件夹
func (m *FolderMonitor) Start() error {
	// 确保文件夹存在
	if err := os.MkdirAll(m.folderPath, 0755); err != nil {
		return fmt.Errorf("创建文件夹失败: %w", err)
	}

	if err := m.watcher.Add(m.folderPath); err != nil {
		return fmt.Errorf("添加监控文件夹失败: %w", err)
	}

	go m.watchLoop()

	utils.Info("开始监控录音文件夹: %s", m.folderPath)
	return nil
}

// Stop 停止监控
func (m *FolderMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.watcher.Close()
		utils.Info("停止监控录音文件夹: %s", m.folderPath)

		// 取消所有待处理的文件定时器
		m.mutex.Lock()
		defer m.mutex.Unlock()
		for _, timer := range m.pendingFiles {
			timer.Stop()
		}
	})
}

// watchLoop 监控循环
func (m *FolderMonitor) watchLoop() {
	for {
		select {
		case <-m.stopChan:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleFileEvent(event)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			utils.Error("监控文件夹时出错: %v", err)
		}
	}
}

// 处理文件事件
func (m *FolderMonitor) handleFileEvent(event fsnotify.Event) {
	// 只处理创建和写入事件
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	filePath := event.Name
	if !m.isTargetFile(filePath) {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// 取消已存在的定时器，去抖时间从最后一次写入重新计算
	if timer, exists := m.pendingFiles[filePath]; exists {
		timer.Stop()
	}

	m.pendingFiles[filePath] = time.AfterFunc(m.debounceTime, func() {
		m.processFile(filePath)
	})

	utils.Debug("检测到录音文件变化: %s", filePath)
}

// 判断是否为目标文件类型
func (m *FolderMonitor) isTargetFile(filePath string) bool {
	fileInfo, err := os.Stat(filePath)
	if err != nil || fileInfo.IsDir() {
		return false
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	for _, targetExt := range m.fileExtensions {
		if ext == targetExt {
			return true
		}
	}
	return false
}

// 处理文件
func (m *FolderMonitor) processFile(filePath string) {
	m.mutex.Lock()
	delete(m.pendingFiles, filePath)
	m.mutex.Unlock()

	// 去抖期间文件可能已被移走
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return
	}

	utils.Info("录音文件已就绪: %s", filePath)
	if m.handler != nil {
		m.handler.OnRecordingReady(filePath)
	}
}

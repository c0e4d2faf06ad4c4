package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// recordingCollector 收集回调到的录音路径
type recordingCollector struct {
	mu    sync.Mutex
	paths []string
}

func (c *recordingCollector) OnRecordingReady(filePath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, filePath)
}

func (c *recordingCollector) collected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func TestFolderMonitor_DetectsNewRecording(t *testing.T) {
	dir := t.TempDir()
	collector := &recordingCollector{}

	monitor, err := NewFolderMonitor(dir, []string{".mp3"}, collector, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("创建监控器失败: %v", err)
	}
	if err := monitor.Start(); err != nil {
		t.Fatalf("启动监控失败: %v", err)
	}
	defer monitor.Stop()

	// 写入一个录音文件，等待去抖定时器触发
	recordingPath := filepath.Join(dir, "lesson.mp3")
	if err := os.WriteFile(recordingPath, []byte("audio"), 0644); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(collector.collected()) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	paths := collector.collected()
	if len(paths) != 1 {
		t.Fatalf("期望收到1个录音事件，实际 %d 个", len(paths))
	}
	if paths[0] != recordingPath {
		t.Fatalf("录音路径不匹配: %s", paths[0])
	}
}

func TestFolderMonitor_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	collector := &recordingCollector{}

	monitor, err := NewFolderMonitor(dir, []string{".mp3"}, collector, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("创建监控器失败: %v", err)
	}
	if err := monitor.Start(); err != nil {
		t.Fatalf("启动监控失败: %v", err)
	}
	defer monitor.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0644); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}

	time.Sleep(500 * time.Millisecond)
	if len(collector.collected()) != 0 {
		t.Fatal("非录音文件不应触发回调")
	}
}

func TestFolderMonitor_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	monitor, err := NewFolderMonitor(dir, []string{".mp3"}, &recordingCollector{}, time.Second)
	if err != nil {
		t.Fatalf("创建监控器失败: %v", err)
	}
	if err := monitor.Start(); err != nil {
		t.Fatalf("启动监控失败: %v", err)
	}

	monitor.Stop()
	monitor.Stop() // 重复调用不应panic
}

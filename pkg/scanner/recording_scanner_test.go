package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// 创建测试目录和测试文件
func setupTestDirectory(t *testing.T) string {
	tempDir := t.TempDir()

	testFiles := []string{
		"lesson_20260310.mp3",
		"lesson_20260311.wav",
		"notes.pdf",
		"cover.jpg",
		".hidden.mp3",
	}

	if err := os.MkdirAll(filepath.Join(tempDir, "subfolder"), 0755); err != nil {
		t.Fatalf("创建子文件夹失败: %v", err)
	}

	for _, name := range testFiles {
		if err := os.WriteFile(filepath.Join(tempDir, name), []byte("test"), 0644); err != nil {
			t.Fatalf("创建测试文件失败: %v", err)
		}
	}
	// 子文件夹中的录音不应被非递归扫描发现
	if err := os.WriteFile(filepath.Join(tempDir, "subfolder", "a.mp3"), []byte("test"), 0644); err != nil {
		t.Fatalf("创建测试文件失败: %v", err)
	}

	return tempDir
}

func TestScanDirectory(t *testing.T) {
	dir := setupTestDirectory(t)
	scanner := NewRecordingScanner()

	files, err := scanner.ScanDirectory(dir)
	assert.NoError(t, err)
	assert.Len(t, files, 2)

	names := []string{files[0].Name, files[1].Name}
	assert.Contains(t, names, "lesson_20260310.mp3")
	assert.Contains(t, names, "lesson_20260311.wav")
}

func TestScanDirectory_SessionID(t *testing.T) {
	dir := setupTestDirectory(t)
	scanner := NewRecordingScanner()

	files, _ := scanner.ScanDirectory(dir)
	for _, f := range files {
		assert.NotContains(t, f.SessionID, ".")
	}

	assert.Equal(t, "lesson_20260310", SessionIDForPath("/data/recordings/lesson_20260310.mp3"))
}

func TestScanDirectory_Missing(t *testing.T) {
	scanner := NewRecordingScanner()
	_, err := scanner.ScanDirectory("/path/not/exist")
	assert.Error(t, err)
}

func TestFilterNewFiles(t *testing.T) {
	scanner := NewRecordingScanner()

	files := []RecordingFile{
		{Path: "/data/a.mp3"},
		{Path: "/data/b.mp3"},
	}
	processed := map[string]bool{"/data/a.mp3": true}

	newFiles := scanner.FilterNewFiles(files, processed)
	assert.Len(t, newFiles, 1)
	assert.Equal(t, "/data/b.mp3", newFiles[0].Path)
}

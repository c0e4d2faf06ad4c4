package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// RecordingFile 表示一个课堂录音文件
type RecordingFile struct {
	Path      string    // 文件路径
	Name      string    // 文件名
	Ext       string    // 文件扩展名
	Size      int64     // 文件大小（字节）
	ModTime   time.Time // 修改时间
	SessionID string    // 由文件名推导的课堂会话ID
}

// RecordingScanner 用于扫描课堂录音文件
type RecordingScanner struct {
	AudioExtensions []string
}

// NewRecordingScanner 创建新的录音扫描器
func NewRecordingScanner() *RecordingScanner {
	return &RecordingScanner{
		AudioExtensions: []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".aac"},
	}
}

// SessionIDForPath 由录音文件名推导课堂会话ID（去掉扩展名）
func SessionIDForPath(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ScanDirectory 扫描指定目录中的录音文件
func (s *RecordingScanner) ScanDirectory(dir string) ([]RecordingFile, error) {
	var recordings []RecordingFile

	logrus.Infof("开始扫描录音目录: %s", dir)

	// 读取目录内容（非递归）
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		// 跳过目录和隐藏文件
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			logrus.Warnf("获取文件信息失败: %v", err)
			continue
		}

		path := filepath.Join(dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(path))

		isAudio := false
		for _, audioExt := range s.AudioExtensions {
			if ext == audioExt {
				isAudio = true
				break
			}
		}
		if !isAudio {
			continue
		}

		recordings = append(recordings, RecordingFile{
			Path:      path,
			Name:      entry.Name(),
			Ext:       ext,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
			SessionID: SessionIDForPath(path),
		})
	}

	logrus.Infof("扫描完成，共找到 %d 个录音文件", len(recordings))

	return recordings, nil
}

// FilterNewFiles 根据已处理记录过滤出新录音
func (s *RecordingScanner) FilterNewFiles(files []RecordingFile, processedPaths map[string]bool) []RecordingFile {
	var newFiles []RecordingFile

	for _, file := range files {
		if !processedPaths[file.Path] {
			newFiles = append(newFiles, file)
		}
	}

	logrus.Infof("过滤后剩余 %d 个新录音需要处理", len(newFiles))

	return newFiles
}

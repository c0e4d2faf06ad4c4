package utils

import (
	"fmt"
	"time"
)

// FormatTimeDuration 格式化时间长度为易读格式
func FormatTimeDuration(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

// FormatClock 将毫秒格式化为 mm:ss 时钟格式，用于时间戳标记和摘录展示
func FormatClock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / 1000
	return fmt.Sprintf("%02d:%02d", totalSeconds/60, totalSeconds%60)
}

// ParseClock 解析 mm:ss 时钟格式为毫秒
func ParseClock(s string) (int64, error) {
	var minutes, seconds int64
	if _, err := fmt.Sscanf(s, "%d:%d", &minutes, &seconds); err != nil {
		return 0, fmt.Errorf("无法解析时间标记 %q: %w", s, err)
	}
	if minutes < 0 || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("非法的时间标记: %s", s)
	}
	return (minutes*60 + seconds) * 1000, nil
}

// GetCurrentTimeString 获取当前时间的字符串表示
func GetCurrentTimeString() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

// FormatFileSize 将字节大小格式化为人类可读格式
func FormatFileSize(sizeBytes int64) string {
	const (
		B  int64 = 1
		KB int64 = 1024 * B
		MB int64 = 1024 * KB
		GB int64 = 1024 * MB
		TB int64 = 1024 * GB
	)

	var (
		unit     string
		unitSize int64
	)

	switch {
	case sizeBytes >= TB:
		unit = "TB"
		unitSize = TB
	case sizeBytes >= GB:
		unit = "GB"
		unitSize = GB
	case sizeBytes >= MB:
		unit = "MB"
		unitSize = MB
	case sizeBytes >= KB:
		unit = "KB"
		unitSize = KB
	default:
		unit = "B"
		unitSize = B
	}

	return fmt.Sprintf("%.2f %s", float64(sizeBytes)/float64(unitSize), unit)
}

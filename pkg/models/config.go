package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Config 表示时间轴引擎的配置
type Config struct {
	RecordingsFolder string `json:"recordings_folder"` // 课堂录音所在文件夹
	OutputFolder     string `json:"output_folder"`     // 导出结果文件夹
	TempDir          string `json:"temp_dir"`          // 临时分片目录

	ChunkSeconds int `json:"chunk_seconds"` // 分片时长阈值（秒）
	SampleRate   int `json:"sample_rate"`   // 重采样采样率（Hz）
	MaxWorkers   int `json:"max_workers"`   // 分片识别并发数
	MaxRetries   int `json:"max_retries"`   // 单分片识别最大重试次数

	RetryDelay         float64 `json:"retry_delay"`          // 重试延迟（秒）
	PollIntervalSecond int     `json:"poll_interval_second"` // 异步任务轮询间隔（秒）
	PollTimeoutSecond  int     `json:"poll_timeout_second"`  // 异步任务最长等待（秒）
	ASRMode            string  `json:"asr_mode"`             // 识别模式 (sync, async)
	Language           string  `json:"language"`             // 识别语言提示

	MergeGapMs         int64 `json:"merge_gap_ms"`          // 合并相邻句子的最大间隔（毫秒）
	MergeMaxDurationMs int64 `json:"merge_max_duration_ms"` // 合并后段落的最大时长（毫秒）
	MinSegmentChars    int   `json:"min_segment_chars"`     // 合并后段落的最小字符数

	WindowSizeMs  int64 `json:"window_size_ms"`  // 热点聚合窗口（毫秒）
	HotspotTopN   int   `json:"hotspot_top_n"`   // 热点排名数量
	CancelGraceMs int64 `json:"cancel_grace_ms"` // 锚点撤销宽限期（毫秒）
	ExcerptChars  int   `json:"excerpt_chars"`   // 热点摘录字符预算

	MatchThreshold float64 `json:"match_threshold"` // 文本相似度兜底的最低得分

	ExportSRT  bool `json:"export_srt"`  // 是否导出SRT字幕文件
	ExportJSON bool `json:"export_json"` // 是否导出JSON时间轴文件
	WatchMode  bool `json:"watch_mode"`  // 是否启用监听模式

	LogLevel string `json:"log_level"` // 日志级别
	LogFile  string `json:"log_file"`  // 日志文件
}

// ConfigValidationError 表示配置验证错误
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e *ConfigValidationError) Error() string {
	msg := fmt.Sprintf("配置验证错误: %s - %s", e.Field, e.Message)
	logrus.Error(msg)
	return msg
}

// NewDefaultConfig 创建默认配置
func NewDefaultConfig() *Config {
	return &Config{
		RecordingsFolder:   "./recordings",
		OutputFolder:       "./output",
		TempDir:            "",
		ChunkSeconds:       180,
		SampleRate:         16000,
		MaxWorkers:         4,
		MaxRetries:         3,
		RetryDelay:         1.0,
		PollIntervalSecond: 2,
		PollTimeoutSecond:  600,
		ASRMode:            "sync",
		Language:           "zh",
		MergeGapMs:         2000,
		MergeMaxDurationMs: 30000,
		MinSegmentChars:    6,
		WindowSizeMs:       30000,
		HotspotTopN:        5,
		CancelGraceMs:      5000,
		ExcerptChars:       120,
		MatchThreshold:     0.5,
		ExportSRT:          false,
		ExportJSON:         true,
		WatchMode:          false,
		LogLevel:           "INFO",
		LogFile:            "",
	}
}

// Validate 验证配置是否有效
func (c *Config) Validate() error {
	// 验证文件夹路径
	if err := ensureDirExists(c.RecordingsFolder); err != nil {
		return &ConfigValidationError{"RecordingsFolder", err.Error()}
	}

	if err := ensureDirExists(c.OutputFolder); err != nil {
		return &ConfigValidationError{"OutputFolder", err.Error()}
	}

	// 验证数值范围
	if c.ChunkSeconds < 10 || c.ChunkSeconds > 300 {
		return &ConfigValidationError{"ChunkSeconds", "必须在10-300秒之间"}
	}

	if c.MaxWorkers < 1 || c.MaxWorkers > 16 {
		return &ConfigValidationError{"MaxWorkers", "必须在1-16之间"}
	}

	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return &ConfigValidationError{"MaxRetries", "必须在1-10之间"}
	}

	if c.RetryDelay < 0.1 || c.RetryDelay > 10.0 {
		return &ConfigValidationError{"RetryDelay", "必须在0.1-10.0秒之间"}
	}

	if c.PollIntervalSecond < 1 || c.PollIntervalSecond > 30 {
		return &ConfigValidationError{"PollIntervalSecond", "必须在1-30秒之间"}
	}

	if c.PollTimeoutSecond < c.PollIntervalSecond || c.PollTimeoutSecond > 3600 {
		return &ConfigValidationError{"PollTimeoutSecond", "必须不小于轮询间隔且不超过3600秒"}
	}

	if c.ASRMode != "sync" && c.ASRMode != "async" {
		return &ConfigValidationError{"ASRMode", "必须是 sync 或 async"}
	}

	if c.MergeGapMs < 0 || c.MergeGapMs > 10000 {
		return &ConfigValidationError{"MergeGapMs", "必须在0-10000毫秒之间"}
	}

	if c.MergeMaxDurationMs < c.MergeGapMs || c.MergeMaxDurationMs > 120000 {
		return &ConfigValidationError{"MergeMaxDurationMs", "必须不小于合并间隔且不超过120000毫秒"}
	}

	if c.WindowSizeMs < 1000 || c.WindowSizeMs > 600000 {
		return &ConfigValidationError{"WindowSizeMs", "必须在1000-600000毫秒之间"}
	}

	if c.HotspotTopN < 1 || c.HotspotTopN > 100 {
		return &ConfigValidationError{"HotspotTopN", "必须在1-100之间"}
	}

	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return &ConfigValidationError{"MatchThreshold", "必须在0-1之间"}
	}

	return nil
}

// LoadFromFile 从文件加载配置
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("读取配置文件失败: %v", err)
		return err
	}

	err = json.Unmarshal(data, c)
	if err != nil {
		logrus.Errorf("解析配置文件失败: %v", err)
		return err
	}

	if err := c.Validate(); err != nil {
		logrus.Errorf("配置验证失败: %v", err)
		return err
	}

	return nil
}

// SaveToFile 保存配置到文件
func (c *Config) SaveToFile(path string) error {
	// 确保目录存在
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logrus.Errorf("创建目录失败: %v", err)
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		logrus.Errorf("序列化配置失败: %v", err)
		return err
	}

	err = os.WriteFile(path, data, 0644)
	if err != nil {
		logrus.Errorf("写入配置文件失败: %v", err)
		return err
	}

	return nil
}

// Update 批量更新配置
func (c *Config) Update(updates map[string]interface{}) error {
	// 保存当前配置（用于回滚）
	tempConfig := *c

	// 将更新序列化为JSON再反序列化到结构体中
	// 这种方式处理map到struct的转换较为方便
	updateBytes, err := json.Marshal(updates)
	if err != nil {
		logrus.Errorf("序列化更新数据失败: %v", err)
		return err
	}

	err = json.Unmarshal(updateBytes, c)
	if err != nil {
		// 回滚配置
		*c = tempConfig
		logrus.Errorf("应用配置更新失败: %v", err)
		return err
	}

	// 验证配置
	if err := c.Validate(); err != nil {
		// 回滚配置
		*c = tempConfig
		logrus.Errorf("配置验证失败: %v", err)
		return err
	}

	return nil
}

// Reset 重置为默认配置
func (c *Config) Reset() {
	defaultConfig := NewDefaultConfig()
	*c = *defaultConfig
}

// 确保目录存在，如果不存在则创建
func ensureDirExists(path string) error {
	if path == "" {
		return nil // 空路径视为可选
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}

	return nil
}

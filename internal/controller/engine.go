package controller

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/ccp-p/classroom-timeline/internal/ui"
	"github.com/ccp-p/classroom-timeline/pkg/asr"
	"github.com/ccp-p/classroom-timeline/pkg/chunker"
	"github.com/ccp-p/classroom-timeline/pkg/export"
	"github.com/ccp-p/classroom-timeline/pkg/grounding"
	"github.com/ccp-p/classroom-timeline/pkg/hotspot"
	"github.com/ccp-p/classroom-timeline/pkg/llm"
	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/scanner"
	"github.com/ccp-p/classroom-timeline/pkg/store"
	"github.com/ccp-p/classroom-timeline/pkg/timeline"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// Engine 时间轴引擎控制器，协调切分、识别、组装和下游查询
type Engine struct {
	// 配置
	Config *models.Config

	// UI组件
	ProgressManager *ui.ProgressManager

	// 处理组件
	Chunker   *chunker.Chunker
	ASRClient *asr.Client
	Assembler *timeline.Assembler
	Matcher   *grounding.Matcher
	Hotspots  *hotspot.Aggregator
	Store     store.SessionStore
	Tutor     *llm.TutorClient

	// 导出组件
	srtExporter  *export.SRTExporter
	jsonExporter *export.JSONExporter

	// 上下文控制
	ctx        context.Context
	cancelFunc context.CancelFunc

	// 状态数据
	Stats struct {
		StartTime          time.Time
		TotalSessions      int
		SuccessfulSessions int
		FailedSessions     int
	}

	// 资源管理
	TempDir string
	cleanup []func() // 清理函数列表
	mu      sync.Mutex
}

// NewEngine 创建时间轴引擎控制器
func NewEngine(configFile string, logLevel string, logFile string) (*Engine, error) {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		Config:     models.NewDefaultConfig(),
		ctx:        ctx,
		cancelFunc: cancel,
	}

	// 初始化日志
	if err := utils.InitLogger(logLevel, logFile); err != nil {
		cancel()
		return nil, fmt.Errorf("初始化日志失败: %v", err)
	}
	// 日志初始化后再创建ProgressManager
	e.ProgressManager = ui.NewProgressManager(true)

	// 加载配置
	if configFile != "" {
		if err := e.Config.LoadFromFile(configFile); err != nil {
			utils.Warn("配置加载失败: %v，将使用默认配置", err)
		}
	}

	// 创建临时目录，配置了temp_dir时在其下创建
	if e.Config.TempDir != "" {
		if err := os.MkdirAll(e.Config.TempDir, 0755); err != nil {
			cancel()
			return nil, fmt.Errorf("创建临时目录失败: %v", err)
		}
	}
	tempDir, err := os.MkdirTemp(e.Config.TempDir, "classroom-timeline")
	if err != nil {
		cancel()
		return nil, fmt.Errorf("创建临时目录失败: %v", err)
	}
	e.TempDir = tempDir
	e.addCleanup(func() { os.RemoveAll(tempDir) })

	e.initComponents()
	e.setupSignalHandlers()

	return e, nil
}

// 初始化所有组件
func (e *Engine) initComponents() {
	segmentsDir := filepath.Join(e.TempDir, "segments")

	e.Chunker = chunker.NewChunker(segmentsDir, nil, e.Config)
	e.Chunker.SetProgressManager(e.ProgressManager)
	e.Chunker.SetConcurrencyLimit(e.Config.MaxWorkers)

	e.ASRClient = asr.NewClient(e.Config)
	e.Assembler = timeline.NewAssembler(e.Config)
	e.Matcher = grounding.NewMatcher(e.Config)
	e.Hotspots = hotspot.NewAggregator(e.Config)
	e.Store = store.NewMemoryStore(e.Config.CancelGraceMs, "")

	// 答疑能力需要API密钥，未配置时相关接口不可用
	if apiKey := os.Getenv("TUTOR_API_KEY"); apiKey != "" {
		e.Tutor = llm.NewTutorClient(apiKey)
	}

	e.srtExporter = export.NewSRTExporter(e.Config.OutputFolder)
	e.jsonExporter = export.NewJSONExporter(e.Config.OutputFolder, e.Config.Language)
}

// TranscribeSession 处理一个课堂录音：切分、识别、组装、导出
// 临时分片文件在任何退出路径上都会被清理
func (e *Engine) TranscribeSession(audioPath string) (*models.TranscribeResult, error) {
	sessionID := scanner.SessionIDForPath(audioPath)
	start := time.Now()

	utils.Info("开始处理课堂录音: %s (会话 %s)", filepath.Base(audioPath), sessionID)

	thresholdMs := int64(e.Config.ChunkSeconds) * 1000

	// 1. 切分录音
	chunks, durationMs, err := e.Chunker.SplitRecording(e.ctx, audioPath, thresholdMs)
	if err != nil {
		return nil, fmt.Errorf("切分录音失败: %w", err)
	}
	defer chunker.CleanupChunks(chunks)

	// 2. 并发识别分片
	barID := "asr_" + sessionID
	e.ProgressManager.CreateProgressBar(barID, len(chunks), "识别 "+sessionID, "准备中...")
	progressCallback := func(percent int, message string) {
		e.ProgressManager.UpdateProgressBar(barID, percent*len(chunks)/100, message)
	}

	results, err := e.ASRClient.TranscribeChunks(e.ctx, chunks, progressCallback)
	if err != nil {
		e.ProgressManager.CompleteProgressBar(barID, "识别失败")
		return nil, fmt.Errorf("识别失败: %w", err)
	}
	e.ProgressManager.CompleteProgressBar(barID, "识别完成")

	// 3. 组装时间轴：使用切分时确定的绝对偏移，失败分片不会挪动后续时间戳
	var chunkSentences []timeline.ChunkSentences
	var failedChunks []int
	for _, r := range results {
		if r.Err != nil {
			failedChunks = append(failedChunks, r.Chunk.Index)
			continue
		}
		chunkSentences = append(chunkSentences, timeline.ChunkSentences{
			Index:         r.Chunk.Index,
			StartOffsetMs: r.Chunk.StartOffsetMs,
			Sentences:     r.Sentences,
		})
	}
	segments := e.Assembler.Assemble(chunkSentences)

	if err := e.Store.SaveSegments(sessionID, segments); err != nil {
		return nil, fmt.Errorf("保存转写段落失败: %w", err)
	}

	// 4. 导出结果文件
	outputFiles := make(map[string]string)
	if e.Config.ExportJSON {
		path, err := e.jsonExporter.ExportJSON(sessionID, segments, durationMs)
		if err != nil {
			utils.Warn("导出JSON失败: %v", err)
		} else {
			outputFiles["json"] = path
		}
	}
	if e.Config.ExportSRT {
		path, err := e.srtExporter.ExportSRT(segments, sessionID)
		if err != nil {
			utils.Warn("导出SRT失败: %v", err)
		} else {
			outputFiles["srt"] = path
		}
	}

	result := &models.TranscribeResult{
		SessionID:     sessionID,
		Segments:      segments,
		TotalChunks:   len(chunks),
		FailedChunks:  failedChunks,
		OutputFiles:   outputFiles,
		DurationMs:    durationMs,
		ProcessTimeMs: time.Since(start).Milliseconds(),
	}

	utils.Info("会话 %s 处理完成: %d 段文本, %d/%d 分片成功, 耗时 %s",
		sessionID, len(segments), len(chunks)-len(failedChunks), len(chunks),
		utils.FormatTimeDuration(time.Since(start).Seconds()))

	return result, nil
}

// TranscribeRemoteSession 识别一段可外部访问的完整录音并组装时间轴
// 远程录音不经过本地切分，走异步提交/轮询策略，要求配置 asr_mode 为 async
func (e *Engine) TranscribeRemoteSession(fileURL string) (*models.TranscribeResult, error) {
	if e.Config.ASRMode != "async" {
		return nil, fmt.Errorf("远程录音识别需要异步模式，当前 asr_mode 为 %s", e.Config.ASRMode)
	}
	// 识别模式可能在初始化后被命令行覆盖
	e.ASRClient.Mode = e.Config.ASRMode

	parsed, err := url.Parse(fileURL)
	if err != nil || parsed.Path == "" {
		return nil, fmt.Errorf("无效的录音URL: %s", fileURL)
	}
	sessionID := scanner.SessionIDForPath(parsed.Path)
	start := time.Now()

	utils.Info("开始处理远程课堂录音: %s (会话 %s)", fileURL, sessionID)

	barID := "asr_" + sessionID
	e.ProgressManager.CreateProgressBar(barID, 100, "识别 "+sessionID, "提交中...")
	progressCallback := func(percent int, message string) {
		e.ProgressManager.UpdateProgressBar(barID, percent, message)
	}

	sentences, err := e.ASRClient.TranscribeURL(e.ctx, fileURL, progressCallback)
	if err != nil {
		e.ProgressManager.CompleteProgressBar(barID, "识别失败")
		return nil, fmt.Errorf("识别失败: %w", err)
	}
	e.ProgressManager.CompleteProgressBar(barID, "识别完成")

	// 整段录音视为偏移为0的单一分片
	segments := e.Assembler.Assemble([]timeline.ChunkSentences{
		{Index: 0, StartOffsetMs: 0, Sentences: sentences},
	})

	if err := e.Store.SaveSegments(sessionID, segments); err != nil {
		return nil, fmt.Errorf("保存转写段落失败: %w", err)
	}

	var durationMs int64
	if len(segments) > 0 {
		durationMs = segments[len(segments)-1].EndMs
	}

	outputFiles := make(map[string]string)
	if e.Config.ExportJSON {
		path, err := e.jsonExporter.ExportJSON(sessionID, segments, durationMs)
		if err != nil {
			utils.Warn("导出JSON失败: %v", err)
		} else {
			outputFiles["json"] = path
		}
	}
	if e.Config.ExportSRT {
		path, err := e.srtExporter.ExportSRT(segments, sessionID)
		if err != nil {
			utils.Warn("导出SRT失败: %v", err)
		} else {
			outputFiles["srt"] = path
		}
	}

	result := &models.TranscribeResult{
		SessionID:     sessionID,
		Segments:      segments,
		TotalChunks:   1,
		OutputFiles:   outputFiles,
		DurationMs:    durationMs,
		ProcessTimeMs: time.Since(start).Milliseconds(),
	}

	utils.Info("会话 %s 处理完成: %d 段文本, 耗时 %s",
		sessionID, len(segments), utils.FormatTimeDuration(time.Since(start).Seconds()))

	return result, nil
}

// ProcessRecordings 批量处理录音目录中的全部录音
func (e *Engine) ProcessRecordings() ([]*models.TranscribeResult, error) {
	e.Stats.StartTime = time.Now()

	recordingScanner := scanner.NewRecordingScanner()
	recordings, err := recordingScanner.ScanDirectory(e.Config.RecordingsFolder)
	if err != nil {
		return nil, fmt.Errorf("扫描录音目录失败: %w", err)
	}

	var results []*models.TranscribeResult
	for i, rec := range recordings {
		fmt.Printf("\n[%d/%d] 开始处理: %s\n", i+1, len(recordings), rec.Name)

		result, err := e.TranscribeSession(rec.Path)
		e.Stats.TotalSessions++
		if err != nil {
			e.Stats.FailedSessions++
			color.Red("\n[%d/%d] 处理失败: %s - %v", i+1, len(recordings), rec.Name, err)
			continue
		}

		e.Stats.SuccessfulSessions++
		results = append(results, result)
		color.Green("\n[%d/%d] 处理成功: %s", i+1, len(recordings), rec.Name)
		for fileType, filePath := range result.OutputFiles {
			fmt.Printf("- %s: %s\n", fileType, filePath)
		}
	}

	return results, nil
}

// GroundCitations 把AI回答中的引用定位回会话时间轴
func (e *Engine) GroundCitations(sessionID, responseText string) ([]models.GroundedCitation, error) {
	segments, err := e.Store.GetSegments(sessionID)
	if err != nil {
		return nil, err
	}
	return e.Matcher.GroundCitations(responseText, segments), nil
}

// TutorAnswer 答疑结果：回答文本加上定位回时间轴的引用
type TutorAnswer struct {
	Answer    string                    `json:"answer"`
	Citations []models.GroundedCitation `json:"citations"`
}

// AnswerQuestion 基于会话转写回答学生提问，并把回答中的引用定位回时间轴
func (e *Engine) AnswerQuestion(ctx context.Context, sessionID, question string) (*TutorAnswer, error) {
	if e.Tutor == nil {
		return nil, fmt.Errorf("未配置答疑服务，请设置TUTOR_API_KEY环境变量")
	}

	segments, err := e.Store.GetSegments(sessionID)
	if err != nil {
		return nil, err
	}

	var transcript string
	for _, seg := range segments {
		transcript += fmt.Sprintf("[%s] %s\n", utils.FormatClock(seg.StartMs), seg.Text)
	}

	answer, err := e.Tutor.AnswerQuestion(ctx, transcript, question)
	if err != nil {
		return nil, fmt.Errorf("答疑请求失败: %w", err)
	}

	return &TutorAnswer{
		Answer:    answer,
		Citations: e.Matcher.GroundCitations(answer, segments),
	}, nil
}

// ComputeHotspots 计算会话的疑难热点排名，每次调用现算
func (e *Engine) ComputeHotspots(sessionID string) ([]models.ConfusionHotspot, error) {
	anchors, err := e.Store.ListAnchors(sessionID)
	if err != nil {
		return nil, err
	}
	segments, err := e.Store.GetSegments(sessionID)
	if err != nil {
		segments = nil // 无转写时热点照常计算，摘录为空
	}
	return e.Hotspots.ComputeHotspots(anchors, segments)
}

// Context 返回引擎的根上下文
func (e *Engine) Context() context.Context {
	return e.ctx
}

// 添加清理函数
func (e *Engine) addCleanup(cleanup func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanup = append(e.cleanup, cleanup)
}

// AddCleanup 注册一个在Cleanup时执行的清理函数
func (e *Engine) AddCleanup(cleanup func()) {
	e.addCleanup(cleanup)
}

// Cleanup 执行所有清理
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()

	// 逆序执行清理函数
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
	e.cleanup = nil

	if e.ProgressManager != nil {
		e.ProgressManager.CloseAll("已完成")
	}

	// 恢复日志设置
	utils.DisableTerminalProgress()
}

// 设置中断处理
func (e *Engine) setupSignalHandlers() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		utils.Info("接收到中断信号，正在停止...")
		e.cancelFunc()
	}()
}

// WaitForTermination 阻塞等待终止信号
func (e *Engine) WaitForTermination() error {
	<-e.ctx.Done()
	return nil
}

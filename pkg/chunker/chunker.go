package chunker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ccp-p/classroom-timeline/internal/ui"
	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// ProgressCallback 是进度回调函数类型
type ProgressCallback func(current, total int, message string)

// Chunker 音频切片器，将整段课堂录音切为受限时长的标准格式分片
type Chunker struct {
	TempSegmentsDir  string
	SampleRate       int
	ProgressCallback ProgressCallback
	ProgressManager  *ui.ProgressManager
	concurrencyLimit int
}

// NewChunker 创建新的音频切片器
func NewChunker(tempSegmentsDir string, callback ProgressCallback, config *models.Config) *Chunker {
	// 确保临时目录存在
	os.MkdirAll(tempSegmentsDir, 0755)

	return &Chunker{
		TempSegmentsDir:  tempSegmentsDir,
		SampleRate:       config.SampleRate,
		ProgressCallback: callback,
		concurrencyLimit: config.MaxWorkers,
	}
}

// SetConcurrencyLimit 设置并发限制
func (c *Chunker) SetConcurrencyLimit(limit int) {
	if limit > 0 {
		c.concurrencyLimit = limit
	}
}

// SetProgressManager 设置进度管理器
func (c *Chunker) SetProgressManager(manager *ui.ProgressManager) {
	c.ProgressManager = manager
}

// PlanChunks 根据总时长和分片阈值计算分片方案
// 时长不超过阈值时只产出一个分片；否则前N-1个分片时长为阈值、
// 起始偏移为k*阈值，最后一个分片承接剩余时长
func PlanChunks(durationMs, thresholdMs int64) []models.AudioChunk {
	if durationMs <= 0 || thresholdMs <= 0 {
		return nil
	}

	if durationMs <= thresholdMs {
		return []models.AudioChunk{{
			Index:             0,
			StartOffsetMs:     0,
			NominalDurationMs: durationMs,
		}}
	}

	n := int((durationMs + thresholdMs - 1) / thresholdMs)
	chunks := make([]models.AudioChunk, 0, n)
	for i := 0; i < n; i++ {
		start := int64(i) * thresholdMs
		duration := thresholdMs
		if i == n-1 {
			duration = durationMs - start
		}
		chunks = append(chunks, models.AudioChunk{
			Index:             i,
			StartOffsetMs:     start,
			NominalDurationMs: duration,
		})
	}
	return chunks
}

// ProbeDurationMs 使用ffprobe探测音频总时长（毫秒）
func (c *Chunker) ProbeDurationMs(audioPath string) (int64, error) {
	cmd := exec.Command(
		"ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("执行ffprobe失败: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("解析时长输出失败: %w", err)
	}

	return int64(seconds * 1000), nil
}

// SplitRecording 将录音文件切分为标准格式分片并探测总时长
// ffmpeg不可用对整个任务是致命的；时长探测失败时退化为整文件单分片
func (c *Chunker) SplitRecording(ctx context.Context, audioPath string, thresholdMs int64) ([]models.AudioChunk, int64, error) {
	if !utils.CheckFFmpeg() {
		return nil, 0, &utils.ChunkingError{Message: "未检测到ffmpeg"}
	}

	filename := filepath.Base(audioPath)
	baseName := filename[:len(filename)-len(filepath.Ext(filename))]

	// 1. 探测总时长，决定分片方案
	durationMs, err := c.ProbeDurationMs(audioPath)
	if err != nil {
		// 探测失败时不猜测时长，整文件作为一个分片，由识别后端自然拒绝超限负载
		utils.Warn("时长探测失败，退化为整文件单分片: %v", err)
		chunk, encErr := c.encodeWholeFile(ctx, audioPath, baseName)
		if encErr != nil {
			return nil, 0, encErr
		}
		return []models.AudioChunk{chunk}, 0, nil
	}

	utils.Info("录音总时长: %s", utils.FormatTimeDuration(float64(durationMs)/1000))

	chunks := PlanChunks(durationMs, thresholdMs)
	if len(chunks) == 0 {
		return nil, durationMs, &utils.ChunkingError{Message: fmt.Sprintf("无法规划分片: 时长%dms, 阈值%dms", durationMs, thresholdMs)}
	}

	// 2. 创建进度条
	progressID := fmt.Sprintf("split_%s", baseName)
	if c.ProgressManager != nil {
		c.ProgressManager.CreateProgressBar(progressID, len(chunks),
			fmt.Sprintf("切分 %s", filename), fmt.Sprintf("准备切分 %d 个分片", len(chunks)))
	}

	if c.ProgressCallback != nil {
		c.ProgressCallback(0, len(chunks), "准备切分录音")
	}

	// 3. 启动工作协程池并发切片
	jobs := make(chan models.AudioChunk, len(chunks))
	results := make(chan models.AudioChunk, len(chunks))
	errs := make(chan error, len(chunks))
	progress := make(chan int, len(chunks))

	var wg sync.WaitGroup
	workerCount := c.concurrencyLimit
	if workerCount > len(chunks) {
		workerCount = len(chunks)
	}

	// 启动单独的进度更新协程
	var progressWg sync.WaitGroup
	progressWg.Add(1)
	go func() {
		defer progressWg.Done()
		completedCount := 0
		for range progress {
			completedCount++
			if c.ProgressManager != nil {
				c.ProgressManager.UpdateProgressBar(progressID, completedCount,
					fmt.Sprintf("已切分 %d/%d 个分片", completedCount, len(chunks)))
			}

			if c.ProgressCallback != nil {
				c.ProgressCallback(completedCount, len(chunks),
					fmt.Sprintf("导出分片 %d/%d", completedCount, len(chunks)))
			}
		}
	}()

	for w := 1; w <= workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.chunkWorker(ctx, audioPath, baseName, jobs, results, errs, progress)
		}()
	}

	for _, chunk := range chunks {
		jobs <- chunk
	}
	close(jobs)

	wg.Wait()
	close(results)
	close(errs)
	close(progress)
	progressWg.Wait()

	// 4. 收集错误：任一分片导出失败即为致命的切片失败
	var splitErr error
	for err := range errs {
		if err != nil {
			utils.Error("切分录音时出错: %v", err)
			splitErr = err
		}
	}

	done := make([]models.AudioChunk, 0, len(chunks))
	for chunk := range results {
		done = append(done, chunk)
	}

	if splitErr != nil {
		// 失败路径同样不留下临时文件
		CleanupChunks(done)
		if c.ProgressManager != nil {
			c.ProgressManager.CompleteProgressBar(progressID, "切分失败")
		}
		return nil, durationMs, &utils.ChunkingError{Message: "分片导出失败", Cause: splitErr}
	}

	// 5. 按分片序号排序结果
	ordered := make([]models.AudioChunk, len(chunks))
	for _, chunk := range done {
		ordered[chunk.Index] = chunk
	}

	if c.ProgressManager != nil {
		c.ProgressManager.CompleteProgressBar(progressID,
			fmt.Sprintf("完成 - %d 个分片", len(ordered)))
	}

	if c.ProgressCallback != nil {
		c.ProgressCallback(len(chunks), len(chunks),
			fmt.Sprintf("完成 - %d 个分片", len(ordered)))
	}

	return ordered, durationMs, nil
}

// 工作协程函数，处理单个分片的重编码导出
func (c *Chunker) chunkWorker(ctx context.Context, inputPath, baseName string,
	jobs <-chan models.AudioChunk, results chan<- models.AudioChunk,
	errs chan<- error, progress chan<- int) {

	for job := range jobs {
		outputFilename := fmt.Sprintf("%s_chunk%03d.wav", baseName, job.Index)
		outputPath := filepath.Join(c.TempSegmentsDir, outputFilename)

		startSec := float64(job.StartOffsetMs) / 1000
		endSec := float64(job.StartOffsetMs+job.NominalDurationMs) / 1000

		// 重采样为单声道固定采样率，保证分片边界不落在采样点中间
		cmd := exec.CommandContext(ctx,
			"ffmpeg",
			"-y",
			"-i", inputPath,
			"-ss", fmt.Sprintf("%.3f", startSec),
			"-to", fmt.Sprintf("%.3f", endSec),
			"-ac", "1",
			"-ar", fmt.Sprintf("%d", c.SampleRate),
			outputPath,
		)

		if err := cmd.Run(); err != nil {
			errs <- fmt.Errorf("分片 %d 导出失败: %w", job.Index, err)
			continue
		}

		utils.Debug("导出分片完成: %s", outputFilename)
		job.Path = outputPath
		results <- job
		progress <- 1
	}
}

// encodeWholeFile 将整个文件重编码为一个标准格式分片
func (c *Chunker) encodeWholeFile(ctx context.Context, inputPath, baseName string) (models.AudioChunk, error) {
	outputPath := filepath.Join(c.TempSegmentsDir, fmt.Sprintf("%s_chunk000.wav", baseName))

	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-y",
		"-i", inputPath,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", c.SampleRate),
		outputPath,
	)

	if err := cmd.Run(); err != nil {
		return models.AudioChunk{}, &utils.ChunkingError{Message: "整文件重编码失败", Cause: err}
	}

	return models.AudioChunk{Index: 0, StartOffsetMs: 0, NominalDurationMs: 0, Path: outputPath}, nil
}

// CleanupChunks 删除分片临时文件，成功、失败、超时路径都必须调用
func CleanupChunks(chunks []models.AudioChunk) {
	for _, chunk := range chunks {
		if chunk.Path == "" {
			continue
		}
		if err := os.Remove(chunk.Path); err != nil && !os.IsNotExist(err) {
			utils.Warn("删除分片临时文件失败 %s: %v", chunk.Path, err)
		}
	}
}

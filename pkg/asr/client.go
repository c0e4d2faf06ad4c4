package asr

import (
	"context"
	"fmt"
	"sync"

	"github.com/ccp-p/classroom-timeline/pkg/models"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

// ChunkResult 单个分片的识别结果
type ChunkResult struct {
	Chunk     models.AudioChunk
	Sentences []models.Sentence
	Err       error
}

// Stats 策略调用统计
type Stats struct {
	SuccessCount int
	TotalCount   int
}

// Client 识别客户端，在一个能力接口后面封装同步/异步两种策略，
// 并负责分片级的并发调度与失败恢复
type Client struct {
	Sync     Transcriber
	Async    Transcriber
	Mode     string // 配置的识别模式 (sync, async)
	Language string

	maxWorkers   int
	errorHandler *utils.ErrorHandler

	mu    sync.Mutex
	stats map[string]*Stats
}

// NewClient 创建识别客户端
func NewClient(config *models.Config) *Client {
	return &Client{
		Sync:         NewSyncTranscriber(),
		Async:        NewAsyncTranscriber(config),
		Mode:         config.ASRMode,
		Language:     config.Language,
		maxWorkers:   config.MaxWorkers,
		errorHandler: utils.NewErrorHandler(config.MaxRetries, config.RetryDelay),
		stats:        make(map[string]*Stats),
	}
}

// TranscribeChunks 并发识别所有分片，结果严格按分片序号排列
// 单个分片失败只记录、不中断任务；全部分片失败时整个任务以失败结束
func (c *Client) TranscribeChunks(ctx context.Context, chunks []models.AudioChunk, callback ProgressCallback) ([]ChunkResult, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	// 按序号预分配结果槽位，完成顺序不影响产出顺序
	results := make([]ChunkResult, len(chunks))

	var wg sync.WaitGroup
	sem := make(chan struct{}, c.maxWorkers) // 信号量限制并发

	var completed int
	var mu sync.Mutex

	for i, chunk := range chunks {
		wg.Add(1)
		sem <- struct{}{} // 获取信号量

		go func(slot int, chunk models.AudioChunk) {
			defer wg.Done()
			defer func() { <-sem }() // 释放信号量

			var sentences []models.Sentence
			err := c.errorHandler.Retry(fmt.Sprintf("识别分片%d", chunk.Index), func() error {
				var transErr error
				sentences, transErr = c.Sync.Transcribe(ctx, Request{
					AudioPath: chunk.Path,
					Language:  c.Language,
				}, nil)
				return transErr
			})

			c.reportResult(c.Sync.Name(), err == nil)

			if err != nil {
				// 分片失败被就地恢复：该分片不产出句子，任务继续
				err = &utils.ChunkTranscriptionError{ChunkIndex: chunk.Index, Cause: err}
				utils.Error("%v", err)
			}

			results[slot] = ChunkResult{Chunk: chunk, Sentences: sentences, Err: err}

			mu.Lock()
			completed++
			done := completed
			mu.Unlock()

			if callback != nil {
				callback(done*100/len(chunks), fmt.Sprintf("已识别 %d/%d 个分片", done, len(chunks)))
			}
		}(i, chunk)
	}

	wg.Wait()

	// 全部失败时给出确定性的失败结论，并报告失败分片数量
	failedCount := 0
	for _, r := range results {
		if r.Err != nil {
			failedCount++
		}
	}
	if failedCount == len(chunks) {
		return results, fmt.Errorf("全部 %d 个分片识别失败", failedCount)
	}

	if failedCount > 0 {
		utils.Warn("%d/%d 个分片识别失败，产出部分转写", failedCount, len(chunks))
	}

	return results, nil
}

// TranscribeURL 识别一段可外部访问的完整录音，按配置的识别模式选择策略
func (c *Client) TranscribeURL(ctx context.Context, fileURL string, callback ProgressCallback) ([]models.Sentence, error) {
	transcriber := SelectTranscriber(c.Mode, fileURL, c.Sync, c.Async)

	sentences, err := transcriber.Transcribe(ctx, Request{
		FileURL:  fileURL,
		Language: c.Language,
	}, callback)

	c.reportResult(transcriber.Name(), err == nil)
	return sentences, err
}

// reportResult 记录策略调用结果
func (c *Client) reportResult(name string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stat, exists := c.stats[name]
	if !exists {
		stat = &Stats{}
		c.stats[name] = stat
	}
	stat.TotalCount++
	if success {
		stat.SuccessCount++
	}
}

// GetStats 获取策略使用统计信息
func (c *Client) GetStats() map[string]map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make(map[string]map[string]interface{})
	for name, stat := range c.stats {
		successRate := 0.0
		if stat.TotalCount > 0 {
			successRate = float64(stat.SuccessCount) / float64(stat.TotalCount) * 100
		}

		result[name] = map[string]interface{}{
			"count":        stat.TotalCount,
			"success_rate": fmt.Sprintf("%.1f%%", successRate),
		}
	}

	return result
}

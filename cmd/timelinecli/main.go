package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/ccp-p/classroom-timeline/internal/adapters"
	"github.com/ccp-p/classroom-timeline/internal/controller"
	"github.com/ccp-p/classroom-timeline/internal/watcher"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

var (
	recordingsDir = flag.String("recordings", "", "课堂录音目录（覆盖配置文件）")
	outputDir     = flag.String("output", "", "输出目录（覆盖配置文件）")
	configFile    = flag.String("config", "", "配置文件路径")
	remoteURL     = flag.String("url", "", "远程录音URL，走异步识别，不再扫描本地目录")
	asrMode       = flag.String("asr-mode", "", "识别模式 (sync, async)，覆盖配置文件")
	watchMode     = flag.Bool("watch", false, "监控模式：持续监控录音目录并自动处理新录音")
	logLevel      = flag.String("log-level", "info", "日志级别 (debug, info, warn, error)")
	logFile       = flag.String("log-file", "", "日志文件路径")
)

func main() {
	flag.Parse()

	if _, err := logrus.ParseLevel(*logLevel); err != nil {
		*logLevel = "info"
	}

	printWelcome()

	engine, err := controller.NewEngine(*configFile, *logLevel, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer engine.Cleanup()

	applyOverrides(engine)

	// 远程录音不依赖本地FFmpeg切分
	if *remoteURL != "" {
		runRemoteMode(engine, *remoteURL)
		return
	}

	if !checkDependencies() {
		utils.Fatal("缺少必要的依赖项，无法继续")
	}

	if engine.Config.WatchMode {
		if err := runWatchMode(engine); err != nil {
			utils.Fatal("监控模式运行失败: %v", err)
		}
		return
	}

	runBatchMode(engine)
}

// runRemoteMode 识别一段可外部访问的远程录音
func runRemoteMode(engine *controller.Engine, fileURL string) {
	result, err := engine.TranscribeRemoteSession(fileURL)
	if err != nil {
		utils.Fatal("远程录音处理失败: %v", err)
	}

	color.Green("\n处理成功: %s (%d 段文本)", result.SessionID, len(result.Segments))
	for fileType, filePath := range result.OutputFiles {
		fmt.Printf("- %s: %s\n", fileType, filePath)
	}
}

// runBatchMode 批量处理录音目录中的全部录音
func runBatchMode(engine *controller.Engine) {
	start := time.Now()

	results, err := engine.ProcessRecordings()
	if err != nil {
		utils.Fatal("批量处理失败: %v", err)
	}

	if len(results) == 0 {
		utils.Info("没有找到录音文件，程序退出")
		return
	}

	fmt.Println("\n处理结果汇总:")
	fmt.Println("--------------------")
	for i, result := range results {
		fmt.Printf("%d. %s: %d 段文本, %d/%d 分片成功\n",
			i+1, result.SessionID, len(result.Segments),
			result.TotalChunks-len(result.FailedChunks), result.TotalChunks)
	}
	fmt.Println("--------------------")
	fmt.Printf("总用时: %s\n", utils.FormatTimeDuration(time.Since(start).Seconds()))

	fmt.Println("\n所有录音处理完成!")
}

// runWatchMode 监控录音目录，新录音就绪后自动处理
func runWatchMode(engine *controller.Engine) error {
	adapter := adapters.NewEngineAdapter(engine)

	extensions := []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".aac"}
	monitor, err := watcher.NewFolderMonitor(
		engine.Config.RecordingsFolder, extensions, adapter, 5*time.Second)
	if err != nil {
		return err
	}

	if err := monitor.Start(); err != nil {
		return err
	}
	engine.AddCleanup(monitor.Stop)

	utils.Info("监控已启动，按Ctrl+C退出...")
	return engine.WaitForTermination()
}

func printWelcome() {
	fmt.Println()
	color.Cyan("================================")
	color.Cyan("    课堂时间轴引擎 - 转写工具    ")
	color.Cyan("================================")
	fmt.Println()
}

func checkDependencies() bool {
	fmt.Print("检查系统依赖... ")

	if !utils.CheckFFmpeg() {
		color.Red("失败")
		utils.Error("未检测到FFmpeg，请确保FFmpeg已安装并添加到系统路径")
		return false
	}
	if !utils.CheckFFprobe() {
		color.Yellow("部分通过")
		utils.Warn("未检测到ffprobe，时长探测失败时将整文件作为单个分片处理")
		return true
	}

	color.Green("通过")
	return true
}

// applyOverrides 用命令行参数覆盖配置中的目录设置
func applyOverrides(engine *controller.Engine) {
	if *recordingsDir != "" {
		engine.Config.RecordingsFolder = *recordingsDir
	}
	if *outputDir != "" {
		engine.Config.OutputFolder = *outputDir
	}
	if *asrMode != "" {
		engine.Config.ASRMode = *asrMode
		if err := engine.Config.Validate(); err != nil {
			utils.Fatal("配置无效: %v", err)
		}
	}
	if *watchMode {
		engine.Config.WatchMode = true
	}

	// 确保目录存在
	os.MkdirAll(engine.Config.RecordingsFolder, 0755)
	os.MkdirAll(engine.Config.OutputFolder, 0755)
}

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/fatih/color"

	"github.com/ccp-p/classroom-timeline/internal/controller"
	"github.com/ccp-p/classroom-timeline/pkg/utils"
)

var (
	addr       = flag.String("addr", ":8080", "监听地址")
	configFile = flag.String("config", "", "配置文件路径")
	logLevel   = flag.String("log-level", "info", "日志级别 (debug, info, warn, error)")
	logFile    = flag.String("log-file", "", "日志文件路径")
)

func main() {
	flag.Parse()

	fmt.Println()
	color.Cyan("================================")
	color.Cyan("   课堂时间轴引擎 - 教师面板    ")
	color.Cyan("================================")
	fmt.Println()

	engine, err := controller.NewEngine(*configFile, *logLevel, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer engine.Cleanup()

	server := newAPIServer(engine)
	http.Handle("/api/", server)

	utils.Info("面板服务启动，监听 %s", *addr)
	utils.Info("请在浏览器中打开 http://localhost%s", *addr)

	if err := http.ListenAndServe(*addr, nil); err != nil {
		utils.Fatal("服务器启动失败: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"patentwatch/internal/config"
	"patentwatch/internal/extract"
	"patentwatch/internal/infringement"
	"patentwatch/internal/llm"
	"patentwatch/internal/logger"
	"patentwatch/internal/search"
)

// patent-analyze runs one analysis from the command line and prints the
// report markdown to stdout.
func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "Path to YAML configuration")
		pdfPath    = flag.String("pdf", "", "Path to the patent PDF to analyze")
	)
	flag.Parse()

	if *pdfPath == "" {
		log.Fatal("--pdf is required")
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	adapter, err := llm.NewAdapter(cfg.Model)
	if err != nil {
		logger.Log.Fatalf("构建模型适配器失败: %v", err)
	}
	searcher, err := search.NewClient(cfg.Search)
	if err != nil {
		logger.Log.Fatalf("构建搜索客户端失败: %v", err)
	}
	pipeline, err := infringement.NewPipeline(adapter, searcher, cfg.Analysis)
	if err != nil {
		logger.Log.Fatalf("构建分析流水线失败: %v", err)
	}

	patentText, err := extract.PDFText(*pdfPath)
	if err != nil {
		logger.Log.Fatalf("无法提取有效文本内容: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	report, err := pipeline.AnalyzePatent(ctx, patentText)
	if err != nil {
		logger.Log.Fatalf("分析过程中出错: %v", err)
	}
	fmt.Println(report)
}

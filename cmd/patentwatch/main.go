package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"patentwatch/internal/config"
	"patentwatch/internal/infringement"
	"patentwatch/internal/llm"
	"patentwatch/internal/logger"
	"patentwatch/internal/search"
	"patentwatch/internal/server"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "Path to YAML configuration")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
	)
	flag.Parse()

	// .env is optional; real deployments set env vars directly.
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

	store, err := server.NewStore(cfg.Server.DBPath)
	if err != nil {
		logger.Log.Fatalf("打开数据库失败: %v", err)
	}
	defer store.Close()

	listen := cfg.Server.Addr
	if *addr != "" {
		listen = *addr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	handler := server.NewServer(pipeline, store, cfg.Server)
	logger.Log.Infof("patentwatch listening on %s (model=%s)", listen, cfg.Model.Type)
	srv := &http.Server{Addr: listen, Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Fatalf("server: %v", err)
	}
}

// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/answer-splitter/internal/config"
	"github.com/yourusername/answer-splitter/internal/jobs"
	"github.com/yourusername/answer-splitter/internal/pdf"
	"github.com/yourusername/answer-splitter/internal/storage"
)

const sweepInterval = 5 * time.Minute

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	router.Use(cors.New(corsConfig))

	// オブジェクトストレージの初期化（任意。失敗してもローカル配信のみで継続）
	store := setupObjectStore(cfg)

	registry := jobs.NewRegistry()
	service, err := pdf.NewService(cfg, registry, store, log.Default())
	if err != nil {
		log.Fatalf("Failed to init pdf service: %v", err)
	}

	// 低トラフィック時の回収漏れを防ぐための定期スイープ
	startSweeper(registry, cfg)

	// ルーティングの設定
	setupRoutes(router, service, cfg)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "answer-splitter-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループの配線を行います。
func setupRoutes(router *gin.Engine, service *pdf.Service, cfg *config.Config) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	opts := pdf.HandlerOptions{PublicBaseURL: cfg.PublicBaseURL}

	api := router.Group("/api")
	{
		api.POST("/pdf/split", pdf.SplitHandler(service, opts))

		jobRoutes := api.Group("/jobs")
		{
			jobRoutes.GET("/:id/manifest.json", pdf.ManifestHandler(service))
			jobRoutes.GET("/:id/:filename", pdf.DownloadHandler(service))
			jobRoutes.DELETE("/:id", pdf.DeleteHandler(service))
		}
	}
}

// setupObjectStore はS3クライアントを作成し、疎通確認を行います。
// バケット未設定または疎通失敗の場合は nil を返し、ローカル配信のみになります。
func setupObjectStore(cfg *config.Config) storage.ObjectStore {
	if cfg.S3Bucket == "" {
		log.Printf("S3 bucket not configured, serving artifacts locally only")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		log.Printf("S3 client init failed, serving artifacts locally only: %v", err)
		return nil
	}
	if err := client.Probe(ctx); err != nil {
		log.Printf("S3 bucket probe failed, serving artifacts locally only: %v", err)
		return nil
	}

	log.Printf("Connected to S3 bucket %s", cfg.S3Bucket)
	return client
}

// startSweeper は期限切れジョブの定期回収を開始します。
func startSweeper(registry *jobs.Registry, cfg *config.Config) {
	retention := time.Duration(cfg.JobExpireMinutes) * time.Minute
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			if n := registry.Sweep(time.Now(), retention); n > 0 {
				log.Printf("swept %d expired job(s)", n)
			}
		}
	}()
}

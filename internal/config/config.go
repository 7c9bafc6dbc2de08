// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ファイル制限
	MaxFileSize int64 // 単一ファイルの最大サイズ（バイト）
	MaxPages    int   // 単一ファイルの最大ページ数

	// ジョブ設定
	JobExpireMinutes int    // ジョブの保持期間（分）
	WorkDir          string // ジョブ作業ディレクトリのルート（空の場合はOSの一時領域）
	PublicBaseURL    string // ダウンロードURL生成用のベースURL（空の場合はリクエストから導出）

	// オブジェクトストレージ設定（S3、任意）
	AwsAccessKey string // AWSアクセスキー
	AwsSecretKey string // AWSシークレットキー
	AwsRegion    string // AWSリージョン
	S3Bucket     string // アップロード先バケット名（空の場合はローカル配信のみ）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// ファイル制限
		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 104857600), // 100MB
		MaxPages:    getEnvAsInt("MAX_PAGES", 500),

		// ジョブ設定
		JobExpireMinutes: getEnvAsInt("JOB_EXPIRE_MINUTES", 60),
		WorkDir:          getEnv("WORK_DIR", ""),
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", ""),

		// オブジェクトストレージ設定
		AwsAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		AwsSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.JobExpireMinutes <= 0 {
		return fmt.Errorf("JOB_EXPIRE_MINUTES must be positive")
	}

	// S3を有効化する場合は認証情報が揃っている必要がある
	if c.S3Bucket != "" {
		if c.AwsAccessKey == "" || c.AwsSecretKey == "" {
			return fmt.Errorf("AWS credentials are required when S3_BUCKET is set")
		}
		if c.AwsRegion == "" {
			return fmt.Errorf("AWS_REGION is required when S3_BUCKET is set")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// Package storage はオブジェクトストレージとの連携を提供します。
package storage

import (
	"context"
	"io"
)

// ObjectStore はオブジェクトストレージへの保存を抽象化します。
// S3以外の互換ストレージ（MinIO等）への差し替えを想定しています。
type ObjectStore interface {
	// Upload はオブジェクトを保存し、公開URLを返します。
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)
	// Probe は接続確認を行います。起動時のヘルスチェックに使用します。
	Probe(ctx context.Context) error
}

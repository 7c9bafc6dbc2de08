package pdf

import (
	"sync"

	"github.com/yourusername/answer-splitter/internal/jobs"
)

const (
	artifactExt     = ".pdf"
	archiveFilename = "split_results.zip"
)

// PageRange は1つの提出物として切り出すページ範囲を表します（1始まり、両端含む）。
type PageRange struct {
	SubmissionID string `json:"submission_id"`
	StartPage    int    `json:"start_page"`
	EndPage      int    `json:"end_page"`
}

// pageCount は範囲に含まれるページ数を返します。
func (pr PageRange) pageCount() int {
	return pr.EndPage - pr.StartPage + 1
}

// SplitArtifact は1つの範囲から生成された成果物PDFです。
type SplitArtifact struct {
	SubmissionID string
	FileName     string
	PageCount    int
	LocalPath    string
	RemoteURL    string
	RemoteKey    string
}

// SplitResult はファイル配信モードの分割結果です。
type SplitResult struct {
	JobID string `json:"job_id"`
	jobs.Manifest
}

// ArchiveResult はアーカイブ配信モードの分割結果です。
// ストリーム完了後（成否を問わず）に Cleanup を呼ぶ必要があります。
type ArchiveResult struct {
	Filename  string
	artifacts []SplitArtifact
	manifest  jobs.Manifest

	jobDir      string
	cleanupOnce sync.Once
	cleanupErr  error
}

// Cleanup は作業ディレクトリを削除します。複数回呼んでも安全です。
func (r *ArchiveResult) Cleanup() error {
	if r == nil {
		return nil
	}
	r.cleanupOnce.Do(func() {
		r.cleanupErr = removeDir(r.jobDir)
	})
	return r.cleanupErr
}

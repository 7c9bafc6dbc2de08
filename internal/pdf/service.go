// Package pdf はPDF分割処理と成果物配信機能を提供します。
package pdf

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/yourusername/answer-splitter/internal/config"
	"github.com/yourusername/answer-splitter/internal/jobs"
	"github.com/yourusername/answer-splitter/internal/storage"
)

const sourceFilename = "source.pdf"

// Service はPDF分割のワークフロー全体を担います。
type Service struct {
	cfg      *config.Config
	registry *jobs.Registry
	store    storage.ObjectStore // nil の場合はローカル配信のみ
	baseDir  string
	now      func() time.Time
	logger   *log.Logger
}

// NewService は Service を作成し、作業ディレクトリのルートを用意します。
func NewService(cfg *config.Config, registry *jobs.Registry, store storage.ObjectStore, logger *log.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if logger == nil {
		logger = log.Default()
	}

	baseDir := cfg.WorkDir
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "answer-splitter")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}

	return &Service{
		cfg:      cfg,
		registry: registry,
		store:    store,
		baseDir:  baseDir,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// Registry はサービスが使用するジョブレジストリを返します。
func (s *Service) Registry() *jobs.Registry {
	return s.registry
}

func (s *Service) retention() time.Duration {
	return time.Duration(s.cfg.JobExpireMinutes) * time.Minute
}

// sweepExpired は期限切れジョブを回収します。新しいリクエストの処理前に呼ばれるため、
// 一定のリクエスト量があればレジストリのサイズは自律的に収束します。
func (s *Service) sweepExpired() {
	if n := s.registry.Sweep(s.now(), s.retention()); n > 0 {
		s.logger.Printf("swept %d expired job(s)", n)
	}
}

func (s *Service) createWorkspace() (workspace, error) {
	jobID := uuid.NewString()
	dir := filepath.Join(s.baseDir, jobID)
	inDir := filepath.Join(dir, "in")
	outDir := filepath.Join(dir, "out")
	for _, d := range []string{dir, inDir, outDir} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			_ = removeDir(dir)
			return workspace{}, newError("STORAGE_FAILED", "作業ディレクトリの作成に失敗しました。", err)
		}
	}
	return workspace{jobID: jobID, dir: dir, inDir: inDir, outDir: outDir}, nil
}

type storedFile struct {
	path         string
	originalName string
	size         int64
	pages        int
}

// storeMultipartFile はアップロードされたPDFを作業ディレクトリへ保存し、
// サイズ・形式・ページ数を検証します。
func (s *Service) storeMultipartFile(ctx context.Context, file *multipart.FileHeader, destDir string) (storedFile, error) {
	if err := ctx.Err(); err != nil {
		return storedFile{}, err
	}

	if s.cfg.MaxFileSize > 0 && file.Size > s.cfg.MaxFileSize {
		return storedFile{}, newError("LIMIT_EXCEEDED",
			fmt.Sprintf("ファイルサイズ (%dバイト) が上限 (%dバイト) を超えています。", file.Size, s.cfg.MaxFileSize), nil)
	}

	src, err := file.Open()
	if err != nil {
		return storedFile{}, newError("INVALID_INPUT", "アップロードファイルの読み込みに失敗しました。", err)
	}
	defer src.Close()

	destPath := filepath.Join(destDir, sourceFilename)
	dest, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return storedFile{}, newError("STORAGE_FAILED", "アップロードファイルの保存に失敗しました。", err)
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		return storedFile{}, newError("STORAGE_FAILED", "アップロードファイルの保存に失敗しました。", err)
	}
	if err := dest.Close(); err != nil {
		return storedFile{}, newError("STORAGE_FAILED", "アップロードファイルの保存に失敗しました。", err)
	}

	mtype, err := mimetype.DetectFile(destPath)
	if err != nil || !mtype.Is("application/pdf") {
		return storedFile{}, newError("UNSUPPORTED_PDF", "PDFファイルとして認識できませんでした。", err)
	}

	pages, err := pdfapi.PageCountFile(destPath)
	if err != nil {
		return storedFile{}, newError("UNSUPPORTED_PDF", "PDFの解析に失敗しました。", err)
	}
	if pages < 1 {
		return storedFile{}, newError("UNSUPPORTED_PDF", "ページを含まないPDFは処理できません。", nil)
	}
	if s.cfg.MaxPages > 0 && pages > s.cfg.MaxPages {
		return storedFile{}, newError("LIMIT_EXCEEDED",
			fmt.Sprintf("ページ数 (%d) が上限 (%d) を超えています。", pages, s.cfg.MaxPages), nil)
	}

	return storedFile{
		path:         destPath,
		originalName: filepath.Base(file.Filename),
		size:         file.Size,
		pages:        pages,
	}, nil
}

func removeDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

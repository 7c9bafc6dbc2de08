package pdf

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/answer-splitter/internal/jobs"
)

// submissionIDPattern は成果物ファイル名に安全に使える文字の集合です。
var submissionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

const uploadConcurrency = 4

// SplitMultipart はファイル配信モードの分割を行います。
// 成功時はジョブを登録し、マニフェストとダウンロードURLを返します。
// 登録前に失敗した場合は作業ディレクトリを同期的に削除します。
func (s *Service) SplitMultipart(ctx context.Context, file *multipart.FileHeader, rangesRaw, baseURL string) (_ *SplitResult, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if file == nil {
		return nil, newError("INVALID_INPUT", "PDFファイルを選択してください。", nil)
	}

	s.sweepExpired()

	state, err := s.prepareSplit(ctx, file, rangesRaw)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = removeDir(state.ws.dir)
		}
	}()

	artifacts, err := s.executeSplit(ctx, state)
	if err != nil {
		return nil, err
	}

	// リモート保存はベストエフォート。失敗してもリクエストは成功する。
	s.uploadArtifacts(ctx, state.ws.jobID, artifacts)

	manifest := buildManifest(state.file.pages, artifacts, baseURL, state.ws.jobID)

	record := &jobs.Record{
		JobID:      state.ws.jobID,
		Dir:        state.ws.dir,
		CreatedAt:  s.now().UTC(),
		Manifest:   manifest,
		RemoteKeys: remoteKeys(artifacts),
	}
	if err = s.registry.Register(record); err != nil {
		return nil, newError("INTERNAL_ERROR", "ジョブの登録に失敗しました。", err)
	}

	return &SplitResult{JobID: state.ws.jobID, Manifest: manifest}, nil
}

// SplitArchive はアーカイブ配信モードの分割を行います。
// ジョブは登録されず、リモート保存も行いません。呼び出し側は結果のzipを
// ストリームし、完了後に Cleanup を呼びます。
func (s *Service) SplitArchive(ctx context.Context, file *multipart.FileHeader, rangesRaw string) (_ *ArchiveResult, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if file == nil {
		return nil, newError("INVALID_INPUT", "PDFファイルを選択してください。", nil)
	}

	s.sweepExpired()

	state, err := s.prepareSplit(ctx, file, rangesRaw)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = removeDir(state.ws.dir)
		}
	}()

	artifacts, err := s.executeSplit(ctx, state)
	if err != nil {
		return nil, err
	}

	return &ArchiveResult{
		Filename:  archiveFilename,
		artifacts: artifacts,
		manifest:  buildManifest(state.file.pages, artifacts, "", ""),
		jobDir:    state.ws.dir,
	}, nil
}

type splitState struct {
	ws     workspace
	file   storedFile
	ranges []PageRange
}

// prepareSplit は作業ディレクトリの作成、入力PDFの保存、範囲の検証を行います。
// 検証は抽出開始前の一括パスであり、途中の範囲が不正な場合は何も書き込まれません。
func (s *Service) prepareSplit(ctx context.Context, file *multipart.FileHeader, rangesRaw string) (*splitState, error) {
	ranges, err := parseRangeList(rangesRaw)
	if err != nil {
		return nil, err
	}

	ws, err := s.createWorkspace()
	if err != nil {
		return nil, err
	}

	stored, err := s.storeMultipartFile(ctx, file, ws.inDir)
	if err != nil {
		_ = removeDir(ws.dir)
		return nil, err
	}

	if err := validateRanges(ranges, stored.pages); err != nil {
		_ = removeDir(ws.dir)
		return nil, err
	}

	return &splitState{ws: ws, file: stored, ranges: ranges}, nil
}

// executeSplit は検証済みの各範囲から成果物PDFを生成します。
func (s *Service) executeSplit(ctx context.Context, state *splitState) ([]SplitArtifact, error) {
	artifacts := make([]SplitArtifact, 0, len(state.ranges))

	for _, pr := range state.ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		fileName := strings.TrimSpace(pr.SubmissionID) + artifactExt
		outPath := filepath.Join(state.ws.outDir, fileName)

		if err := pdfapi.CollectFile(state.file.path, outPath, buildPageSelection(pr), nil); err != nil {
			return nil, newError("EXTRACT_FAILED",
				fmt.Sprintf("submission_id %q のページ抽出に失敗しました。", pr.SubmissionID), err)
		}
		if _, err := os.Stat(outPath); err != nil {
			return nil, newError("STORAGE_FAILED",
				fmt.Sprintf("submission_id %q の成果物の確認に失敗しました。", pr.SubmissionID), err)
		}

		artifacts = append(artifacts, SplitArtifact{
			SubmissionID: strings.TrimSpace(pr.SubmissionID),
			FileName:     fileName,
			PageCount:    pr.pageCount(),
			LocalPath:    outPath,
		})
	}

	return artifacts, nil
}

// uploadArtifacts は成果物をオブジェクトストレージへ並行アップロードします。
// 各ファイルの失敗はログに残すのみで、成功した分だけリモートURLが設定されます。
func (s *Service) uploadArtifacts(ctx context.Context, jobID string, artifacts []SplitArtifact) {
	if s.store == nil {
		return
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(uploadConcurrency)

	for i := range artifacts {
		i := i
		eg.Go(func() error {
			a := &artifacts[i]
			key := fmt.Sprintf("jobs/%s/%s", jobID, a.FileName)

			f, err := os.Open(a.LocalPath)
			if err != nil {
				s.logger.Printf("remote upload skipped job=%s file=%s: %v", jobID, a.FileName, err)
				return nil
			}
			defer f.Close()

			url, err := s.store.Upload(egCtx, key, f, "application/pdf")
			if err != nil {
				s.logger.Printf("remote upload failed job=%s file=%s: %v", jobID, a.FileName, err)
				return nil
			}
			a.RemoteURL = url
			a.RemoteKey = key
			return nil
		})
	}
	_ = eg.Wait()
}

// buildManifest はマニフェストを生成します。baseURL が空の場合は
// download_url を省略します（アーカイブモード用）。
func buildManifest(totalPages int, artifacts []SplitArtifact, baseURL, jobID string) jobs.Manifest {
	results := make([]jobs.ManifestEntry, 0, len(artifacts))
	for _, a := range artifacts {
		entry := jobs.ManifestEntry{
			SubmissionID: a.SubmissionID,
			FileName:     a.FileName,
			PageCount:    a.PageCount,
		}
		if baseURL != "" {
			if a.RemoteURL != "" {
				entry.DownloadURL = a.RemoteURL
			} else {
				entry.DownloadURL = fmt.Sprintf("%s/api/jobs/%s/%s", strings.TrimRight(baseURL, "/"), jobID, a.FileName)
			}
		}
		results = append(results, entry)
	}
	return jobs.Manifest{
		TotalPages:      totalPages,
		SubmissionCount: len(artifacts),
		Results:         results,
	}
}

func remoteKeys(artifacts []SplitArtifact) []string {
	var keys []string
	for _, a := range artifacts {
		if a.RemoteKey != "" {
			keys = append(keys, a.RemoteKey)
		}
	}
	return keys
}

// parseRangeList はJSON配列の範囲指定を解析します。
func parseRangeList(raw string) ([]PageRange, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, newError("INVALID_INPUT", "分割するページ範囲を指定してください。", nil)
	}

	var ranges []PageRange
	if err := json.Unmarshal([]byte(raw), &ranges); err != nil {
		return nil, newError("INVALID_INPUT", "ranges はJSON形式の配列で指定してください。", err)
	}
	if len(ranges) == 0 {
		return nil, newError("INVALID_INPUT", "ページ範囲が1件も指定されていません。", nil)
	}
	return ranges, nil
}

// validateRanges は全範囲を一括検証し、最初の違反で失敗します。
// 範囲同士の重複や順序の入れ替わりは許容されます（同じページが複数の
// 提出物に含まれてよい）。
func validateRanges(ranges []PageRange, totalPages int) error {
	for i, pr := range ranges {
		id := strings.TrimSpace(pr.SubmissionID)
		if id == "" {
			return newError("INVALID_RANGE",
				fmt.Sprintf("%d件目の範囲の submission_id が空です。", i+1), nil)
		}
		if pr.StartPage < 1 {
			return newError("INVALID_RANGE",
				fmt.Sprintf("submission_id %q の start_page (%d) は1以上で指定してください。", id, pr.StartPage), nil)
		}
		if pr.EndPage < pr.StartPage {
			return newError("INVALID_RANGE",
				fmt.Sprintf("submission_id %q の end_page (%d) が start_page (%d) より前になっています。", id, pr.EndPage, pr.StartPage), nil)
		}
		if pr.StartPage > totalPages {
			return newError("INVALID_RANGE",
				fmt.Sprintf("submission_id %q の start_page (%d) が総ページ数 (%d) を超えています。", id, pr.StartPage, totalPages), nil)
		}
		if pr.EndPage > totalPages {
			return newError("INVALID_RANGE",
				fmt.Sprintf("submission_id %q の end_page (%d) が総ページ数 (%d) を超えています。", id, pr.EndPage, totalPages), nil)
		}
		if !submissionIDPattern.MatchString(id) {
			return newError("INVALID_RANGE",
				fmt.Sprintf("submission_id %q に使用できない文字が含まれています（英数字と . _ - のみ）。", id), nil)
		}
	}
	return nil
}

// buildPageSelection はpdfcpuのページ選択形式（1始まり）を生成します。
func buildPageSelection(pr PageRange) []string {
	pages := make([]string, 0, pr.pageCount())
	for p := pr.StartPage; p <= pr.EndPage; p++ {
		pages = append(pages, strconv.Itoa(p))
	}
	return pages
}

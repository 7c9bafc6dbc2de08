package pdf

import (
	"errors"
	"os"

	"github.com/yourusername/answer-splitter/internal/jobs"
)

// Manifest は登録済みジョブのマニフェストをそのまま返します。
func (s *Service) Manifest(jobID string) (*jobs.Manifest, error) {
	record, err := s.registry.Lookup(jobID)
	if err != nil {
		return nil, jobNotFound(err)
	}
	manifest := record.Manifest
	return &manifest, nil
}

// OpenArtifact はジョブの成果物ファイルを開き、サイズとともに返します。
// ファイル名はジョブのマニフェストに載っているものだけ許可されます。
func (s *Service) OpenArtifact(jobID, fileName string) (*os.File, int64, error) {
	record, err := s.registry.Lookup(jobID)
	if err != nil {
		return nil, 0, jobNotFound(err)
	}

	if _, ok := record.Manifest.FileNames()[fileName]; !ok {
		return nil, 0, newError("FILE_NOT_FOUND", "指定されたファイルはこのジョブに存在しません。", nil)
	}

	file, err := os.Open(artifactPath(record.Dir, fileName))
	if err != nil {
		return nil, 0, newError("FILE_NOT_FOUND", "成果物ファイルが見つかりませんでした。", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, newError("STORAGE_FAILED", "成果物ファイルの情報取得に失敗しました。", err)
	}

	return file, info.Size(), nil
}

// DeleteJob はジョブを登録解除し、ローカルディレクトリを削除します。
// リモートコピーは削除しません。
func (s *Service) DeleteJob(jobID string) error {
	if err := s.registry.Delete(jobID); err != nil {
		return jobNotFound(err)
	}
	return nil
}

func jobNotFound(err error) error {
	if errors.Is(err, jobs.ErrNotFound) {
		return newError("JOB_NOT_FOUND", "指定されたジョブは存在しないか、有効期限切れで削除されました。", err)
	}
	return newError("INTERNAL_ERROR", "ジョブ情報の取得に失敗しました。", err)
}

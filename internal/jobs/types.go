// Package jobs はジョブレジストリと保持期限管理を提供します。
package jobs

import "time"

// Manifest はジョブの成果物一覧を表します。ジョブ登録時に一度だけ生成され、
// 以後は変更されずそのまま配信されます。
type Manifest struct {
	TotalPages      int             `json:"totalPages"`
	SubmissionCount int             `json:"submissionCount"`
	Results         []ManifestEntry `json:"results"`
}

// ManifestEntry は1つの成果物のメタデータを表します。
type ManifestEntry struct {
	SubmissionID string `json:"submission_id"`
	FileName     string `json:"fileName"`
	PageCount    int    `json:"pageCount"`
	DownloadURL  string `json:"download_url,omitempty"`
}

// FileNames はマニフェストに含まれる成果物ファイル名の集合を返します。
func (m *Manifest) FileNames() map[string]struct{} {
	names := make(map[string]struct{}, len(m.Results))
	for _, r := range m.Results {
		names[r.FileName] = struct{}{}
	}
	return names
}

// Record は登録済みジョブの状態を表します。レジストリが所有し、
// 登録後は削除以外の変更を行いません。
type Record struct {
	JobID      string
	Dir        string
	CreatedAt  time.Time
	Manifest   Manifest
	RemoteKeys []string
}

package jobs

import (
	"errors"
	"os"
	"sync"
	"time"
)

var (
	// ErrConflict は同一ジョブIDが既に登録されている場合に返されます。
	ErrConflict = errors.New("job already registered")
	// ErrNotFound は指定されたジョブが存在しない場合に返されます。
	ErrNotFound = errors.New("job not found")
)

// Registry はジョブIDから Record へのプロセス内マッピングです。
// プロセス再起動で内容は失われます。register / delete / sweep は
// ミューテックスで直列化されますが、ディレクトリ削除はロックの外で行います。
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewRegistry は空のレジストリを作成します。
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Register はジョブを登録します。同一IDが存在する場合は ErrConflict を返します。
func (r *Registry) Register(record *Record) error {
	if record == nil || record.JobID == "" {
		return errors.New("record requires a jobID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.JobID]; exists {
		return ErrConflict
	}
	r.records[record.JobID] = record
	return nil
}

// Lookup はジョブを取得します。存在しない場合は ErrNotFound を返します。
func (r *Registry) Lookup(jobID string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

// Delete はジョブの登録を解除し、ローカルディレクトリを削除します。
// エントリを先に取り除くため、登録が存在する間はファイルが消えることはありません。
// ディレクトリが既に消えていても成功扱いです。リモートコピーには触れません。
func (r *Registry) Delete(jobID string) error {
	r.mu.Lock()
	record, ok := r.records[jobID]
	if ok {
		delete(r.records, jobID)
	}
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	_ = os.RemoveAll(record.Dir)
	return nil
}

// Sweep は保持期限を過ぎたジョブをすべて削除し、削除件数を返します。
// 判定とマップ操作のみロック内で行い、ディスク掃除はロック解放後に行います。
func (r *Registry) Sweep(now time.Time, retention time.Duration) int {
	r.mu.Lock()
	var expired []*Record
	for id, record := range r.records {
		if now.Sub(record.CreatedAt) > retention {
			expired = append(expired, record)
			delete(r.records, id)
		}
	}
	r.mu.Unlock()

	for _, record := range expired {
		_ = os.RemoveAll(record.Dir)
	}
	return len(expired)
}

// Len は登録中のジョブ数を返します。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

package pdf

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const manifestEntryName = "manifest.json"

// WriteZip は成果物とマニフェストをzipとして書き込みます。
// エントリは追加されるたびに w へ流れるため、アーカイブ全体を
// メモリに保持することはありません。
func (r *ArchiveResult) WriteZip(w io.Writer) error {
	zw := zip.NewWriter(w)

	for _, a := range r.artifacts {
		if err := addFileEntry(zw, a.FileName, a.LocalPath); err != nil {
			_ = zw.Close()
			return err
		}
	}

	entry, err := zw.Create(manifestEntryName)
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("zipヘッダーの書き込みに失敗しました: %w", err)
	}
	enc := json.NewEncoder(entry)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.manifest); err != nil {
		_ = zw.Close()
		return fmt.Errorf("マニフェストの書き込みに失敗しました: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("zipのクローズに失敗しました: %w", err)
	}
	return nil
}

func addFileEntry(zw *zip.Writer, name, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("zip入力ファイルのオープンに失敗しました: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("zip入力ファイルの情報取得に失敗しました: %w", err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zipヘッダーの生成に失敗しました: %w", err)
	}
	header.Name = name
	header.Method = zip.Deflate

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zipヘッダーの書き込みに失敗しました: %w", err)
	}

	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("zipへの書き込みに失敗しました: %w", err)
	}
	return nil
}

package pdf

import "path/filepath"

type workspace struct {
	jobID  string
	dir    string
	inDir  string
	outDir string
}

func artifactPath(jobDir, fileName string) string {
	return filepath.Join(jobDir, "out", fileName)
}

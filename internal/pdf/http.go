package pdf

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/answer-splitter/internal/jobs"
)

// SplitService は分割リクエストの処理を提供します。
type SplitService interface {
	SplitMultipart(ctx context.Context, file *multipart.FileHeader, rangesRaw, baseURL string) (*SplitResult, error)
	SplitArchive(ctx context.Context, file *multipart.FileHeader, rangesRaw string) (*ArchiveResult, error)
}

// JobService は登録済みジョブの参照と削除を提供します。
type JobService interface {
	Manifest(jobID string) (*jobs.Manifest, error)
	OpenArtifact(jobID, fileName string) (*os.File, int64, error)
	DeleteJob(jobID string) error
}

// HandlerOptions はハンドラーの挙動を調整する設定です。
type HandlerOptions struct {
	// PublicBaseURL が空の場合、ダウンロードURLのベースはリクエストから導出します。
	PublicBaseURL string
}

// safeNamePattern はジョブIDとファイル名に許可する文字の集合です。
// パス区切り文字を含まないため、ジョブディレクトリの外へは到達できません。
var safeNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// SplitHandler は POST /api/pdf/split のハンドラーを返します。
func SplitHandler(svc SplitService, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "multipart/form-data でPDFファイルを送信してください。",
			})
			return
		}
		defer form.RemoveAll()

		file, err := extractSingleFile(form)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": err.Error(),
			})
			return
		}

		rangesRaw := strings.TrimSpace(c.PostForm("ranges"))
		if rangesRaw == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "分割するページ範囲を指定してください。",
			})
			return
		}

		mode := strings.TrimSpace(c.PostForm("mode"))
		switch mode {
		case "", "files":
			result, err := svc.SplitMultipart(c.Request.Context(), file, rangesRaw, resolveBaseURL(c, opts))
			if err != nil {
				respondWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, result)
		case "archive":
			result, err := svc.SplitArchive(c.Request.Context(), file, rangesRaw)
			if err != nil {
				respondWithError(c, err)
				return
			}
			defer result.Cleanup()

			c.Header("Content-Type", "application/zip")
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
			c.Header("Cache-Control", "no-store")
			c.Status(http.StatusOK)
			if err := result.WriteZip(c.Writer); err != nil {
				// レスポンスは送信済みのため、切断や書き込み失敗はログのみ
				log.Printf("archive stream aborted: %v", err)
			}
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "mode は files または archive を指定してください。",
			})
		}
	}
}

// ManifestHandler は GET /api/jobs/:id/manifest.json のハンドラーを返します。
func ManifestHandler(svc JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if !safeNamePattern.MatchString(jobID) {
			respondInvalidName(c)
			return
		}

		manifest, err := svc.Manifest(jobID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, manifest)
	}
}

// DownloadHandler は GET /api/jobs/:id/:filename のハンドラーを返します。
func DownloadHandler(svc JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		fileName := c.Param("filename")
		if !safeNamePattern.MatchString(jobID) || !safeNamePattern.MatchString(fileName) ||
			!strings.HasSuffix(fileName, artifactExt) {
			respondInvalidName(c)
			return
		}

		file, size, err := svc.OpenArtifact(jobID, fileName)
		if err != nil {
			respondWithError(c, err)
			return
		}
		defer file.Close()

		encodedName := url.PathEscape(fileName)
		c.Header("Content-Type", "application/pdf")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", fileName, encodedName))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Job-Id", jobID)
		c.DataFromReader(http.StatusOK, size, "application/pdf", file, nil)
	}
}

// DeleteHandler は DELETE /api/jobs/:id のハンドラーを返します。
func DeleteHandler(svc JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		if !safeNamePattern.MatchString(jobID) {
			respondInvalidName(c)
			return
		}

		if err := svc.DeleteJob(jobID); err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"deleted": true,
			"jobId":   jobID,
		})
	}
}

// resolveBaseURL はダウンロードURLのベースを決定します。
// 転送プロキシ経由の場合は X-Forwarded-Proto を尊重します。
func resolveBaseURL(c *gin.Context, opts HandlerOptions) string {
	if opts.PublicBaseURL != "" {
		return strings.TrimRight(opts.PublicBaseURL, "/")
	}

	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}

func respondInvalidName(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "INVALID_INPUT",
		"message": "jobId とファイル名には英数字と . _ - のみ使用できます。",
	})
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		switch apiErr.Code {
		case "LIMIT_EXCEEDED":
			status = http.StatusRequestEntityTooLarge
		case "JOB_NOT_FOUND", "FILE_NOT_FOUND":
			status = http.StatusNotFound
		case "EXTRACT_FAILED", "STORAGE_FAILED", "INTERNAL_ERROR":
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

func extractSingleFile(form *multipart.Form) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, errors.New("PDFファイルを選択してください。")
	}
	if file := form.File["file"]; len(file) > 0 {
		return file[0], nil
	}
	if file := form.File["file[]"]; len(file) > 0 {
		return file[0], nil
	}
	if files := form.File["files"]; len(files) > 0 {
		return files[0], nil
	}
	if alt := form.File["files[]"]; len(alt) > 0 {
		return alt[0], nil
	}
	return nil, errors.New("PDFファイルを選択してください。")
}

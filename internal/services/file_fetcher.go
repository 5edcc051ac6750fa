package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	apperrors "textcleaner_go_backend/internal/errors"
)

// HTTPFileFetcher downloads remote submissions into temporary files. Any
// failure is normalized to ErrDownloadFailed; a failed download is
// non-retryable for that submission.
type HTTPFileFetcher struct {
	client *http.Client
}

func NewHTTPFileFetcher(client *http.Client) *HTTPFileFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFileFetcher{client: client}
}

var _ FileFetcher = (*HTTPFileFetcher)(nil)

// FetchToTemp streams url into a temporary file and returns its path and
// size. The caller owns the file on success; on failure nothing is left
// behind.
func (f *HTTPFileFetcher) FetchToTemp(ctx context.Context, url, fileName string) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, apperrors.ErrDownloadFailed
	}

	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("file download failed")
		return "", 0, apperrors.ErrDownloadFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("file download returned non-OK status")
		return "", 0, apperrors.ErrDownloadFailed
	}

	// Keep the original extension so the extractor can dispatch on it.
	tempFile, err := os.CreateTemp("", fmt.Sprintf("submission-*%s", filepath.Ext(fileName)))
	if err != nil {
		return "", 0, apperrors.New500Error(err)
	}

	written, err := io.Copy(tempFile, resp.Body)
	closeErr := tempFile.Close()
	if err != nil || closeErr != nil {
		_ = os.Remove(tempFile.Name())
		log.Warn().AnErr("copy", err).AnErr("close", closeErr).Str("url", url).Msg("saving downloaded file failed")
		return "", 0, apperrors.ErrDownloadFailed
	}

	return tempFile.Name(), written, nil
}

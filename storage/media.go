// Package storage owns the files a job touches: uploaded media under
// the uploads directory and intermediate audio under the work
// directory, both keyed by job ID so a job delete can clean up
// everything it owns.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type MediaStore struct {
	uploadsDir string
	workDir    string
	logger     *logrus.Logger
}

func NewMediaStore(uploadsDir, workDir string, logger *logrus.Logger) (*MediaStore, error) {
	for _, dir := range []string{uploadsDir, workDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create directory %s", dir)
		}
	}
	return &MediaStore{uploadsDir: uploadsDir, workDir: workDir, logger: logger}, nil
}

// SaveUpload streams an uploaded file to disk under the job's uploads
// path and returns the absolute path written.
func (s *MediaStore) SaveUpload(jobID, storedFilename string, r io.Reader) (string, error) {
	dir := filepath.Join(s.uploadsDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create upload directory")
	}

	dest := filepath.Join(dir, storedFilename)
	f, err := os.Create(dest)
	if err != nil {
		return "", errors.Wrap(err, "create upload file")
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		os.Remove(dest)
		return "", errors.Wrap(err, "write upload file")
	}

	s.logger.WithFields(logrus.Fields{
		"job_id": jobID,
		"file":   storedFilename,
		"bytes":  written,
	}).Info("Upload stored")
	return dest, nil
}

// UploadPath returns where a job's uploaded media lives.
func (s *MediaStore) UploadPath(jobID, storedFilename string) string {
	return filepath.Join(s.uploadsDir, jobID, storedFilename)
}

// WorkPath returns a scratch path for a job's intermediate files.
func (s *MediaStore) WorkPath(jobID, name string) (string, error) {
	dir := filepath.Join(s.workDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create work directory")
	}
	return filepath.Join(dir, name), nil
}

// RemoveJobFiles deletes every file the job owns in both trees.
// Missing directories are fine; cleanup is best effort and idempotent.
func (s *MediaStore) RemoveJobFiles(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("job ID is required")
	}

	var firstErr error
	for _, dir := range []string{
		filepath.Join(s.uploadsDir, jobID),
		filepath.Join(s.workDir, jobID),
	} {
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "remove %s", dir)
		}
	}

	if firstErr != nil {
		s.logger.WithError(firstErr).WithField("job_id", jobID).Warn("Failed to remove job files")
		return firstErr
	}
	return nil
}

// RemoveWorkFiles clears only the scratch directory, keeping the
// original upload for potential retries.
func (s *MediaStore) RemoveWorkFiles(jobID string) {
	if err := os.RemoveAll(filepath.Join(s.workDir, jobID)); err != nil {
		s.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to remove work files")
	}
}

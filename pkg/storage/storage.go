package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// copyBufferSize matches the spec's fixed 8 KiB per-chunk streaming unit,
// used by SaveStreamToFile for incoming file writes.
const copyBufferSize = 8 * 1024

// ErrStreamCopyFailed marks an error that occurred while copying the
// already-created destination file, as opposed to a failure setting up the
// destination (directory or file creation). Callers use errors.Is against
// this sentinel to tell a client-side stream abort (the copy failed) apart
// from a genuine local save failure (the setup failed).
var ErrStreamCopyFailed = errors.New("stream copy failed")

// EnsureDirExists creates a directory if it doesn't exist.
func EnsureDirExists(path string) error {
	err := os.MkdirAll(path, 0755)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// SaveStreamToFile streams an io.Reader to filePath in copyBufferSize
// chunks, creating parent directories as needed. onProgress is invoked
// after every chunk with the cumulative bytes written. A partially written
// file is removed if the copy fails partway through.
func SaveStreamToFile(stream io.Reader, filePath string, onProgress func(bytesWritten int64)) error {
	dir := filepath.Dir(filePath)
	if err := EnsureDirExists(dir); err != nil {
		return err
	}

	outFile, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer outFile.Close()

	progressWriter := &ProgressWriter{
		Writer:     outFile,
		OnProgress: onProgress,
	}

	buf := make([]byte, copyBufferSize)
	if _, err = io.CopyBuffer(progressWriter, stream, buf); err != nil {
		outFile.Close()
		if removeErr := os.Remove(filePath); removeErr != nil {
			logrus.Warnf("failed to remove partially written file %s: %v", filePath, removeErr)
		}
		return fmt.Errorf("%w: copying stream to %s: %v", ErrStreamCopyFailed, filePath, err)
	}

	logrus.Debugf("saved stream to %s", filePath)
	return nil
}

// ProgressWriter wraps an io.Writer, invoking OnProgress with the
// cumulative byte count after every Write.
type ProgressWriter struct {
	Writer       io.Writer
	BytesWritten int64
	OnProgress   func(bytesWritten int64)
}

func (pw *ProgressWriter) Write(p []byte) (n int, err error) {
	n, err = pw.Writer.Write(p)
	pw.BytesWritten += int64(n)
	if pw.OnProgress != nil {
		pw.OnProgress(pw.BytesWritten)
	}
	return n, err
}

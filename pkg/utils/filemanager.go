// =============================================================================
// IAP ORCAT Pipeline - File Manager Utility
// =============================================================================
//
// This module provides the file operations behind atomic output:
//   - Staging directory management
//   - Promotion of staged files into the output directory
//   - Error file generation for failed runs
//
// STAGING STRATEGY:
//   - Every run writes into <outdir>/.orcat-staging-<runID>
//   - Staged files are renamed into <outdir> only after the run succeeds
//   - A failed run removes its staging directory; files from a previous
//     successful run are left untouched
//   - Rename falls back to copy + remove when the rename fails
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
)

// StagingPrefix starts the name of every staging directory.
const StagingPrefix = ".orcat-staging-"

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles the output files of one run.
type FileManager struct {
	// OutputDir is the directory where final output files are placed.
	OutputDir string

	// StagingDir is the per-run directory output files are written to first.
	StagingDir string

	// RunID identifies the run that owns StagingDir.
	RunID string
}

// NewFileManager creates a FileManager for one run.
func NewFileManager(outputDir, runID string) *FileManager {
	return &FileManager{
		OutputDir:  outputDir,
		StagingDir: filepath.Join(outputDir, StagingPrefix+runID),
		RunID:      runID,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output and staging directories.
//
// RETURNS:
//   - An error if any directory cannot be created.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.OutputDir, fm.StagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// StagingPath returns the staged location of an output file.
func (fm *FileManager) StagingPath(name string) string {
	return filepath.Join(fm.StagingDir, name)
}

// OutputPath returns the final location of an output file.
func (fm *FileManager) OutputPath(name string) string {
	return filepath.Join(fm.OutputDir, name)
}

// =============================================================================
// PROMOTION
// =============================================================================

// Promote moves staged files into the output directory and removes the
// staging directory.
//
// PARAMETERS:
//   - names: File names (relative to the staging directory) to promote.
//
// RETURNS:
//   - The final paths of the promoted files.
//   - Every promotion failure, combined.
func (fm *FileManager) Promote(names []string) ([]string, error) {
	// Check everything is staged before touching the output directory.
	for _, name := range names {
		if !FileExists(fm.StagingPath(name)) {
			return nil, fmt.Errorf("staged file %s is missing", name)
		}
	}

	var result *multierror.Error
	promoted := make([]string, 0, len(names))

	for _, name := range names {
		dst := fm.OutputPath(name)
		if err := moveFile(fm.StagingPath(name), dst); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to promote %s: %w", name, err))
			continue
		}
		promoted = append(promoted, dst)
	}

	if err := fm.Discard(); err != nil {
		result = multierror.Append(result, err)
	}

	return promoted, result.ErrorOrNil()
}

// Discard removes the staging directory and everything in it.
func (fm *FileManager) Discard() error {
	if err := os.RemoveAll(fm.StagingDir); err != nil {
		return fmt.Errorf("failed to remove staging directory %s: %w", fm.StagingDir, err)
	}
	return nil
}

// moveFile renames src to dst, falling back to copy and remove.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	tmp := dst + ".tmp"
	if err := copyFile(src, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}

// =============================================================================
// ERROR FILE GENERATION
// =============================================================================

// ErrorLogEntry describes a failed run.
type ErrorLogEntry struct {
	Timestamp time.Time
	RunID     string
	ErrorType string
	Message   string
}

// WriteErrorLog writes the error file of a failed run.
//
// PARAMETERS:
//   - entry: The failure to record.
//   - path: The error file path.
//
// RETURNS:
//   - An error if writing fails.
func WriteErrorLog(entry ErrorLogEntry, path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer CloseFile(file, &err)

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "=== IAP ORCAT RUN FAILED ===\n"+
		"Run ID:     %s\n"+
		"Time:       %s\n"+
		"Error Type: %s\n"+
		"================================================================================\n"+
		"%s\n"+
		"================================================================================\n"+
		"Output files in this directory, if any, belong to an earlier run.\n",
		entry.RunID,
		entry.Timestamp.Format("2006-01-02 15:04:05"),
		entry.ErrorType,
		entry.Message)

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush error log: %w", err)
	}

	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) (err error) {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer CloseFile(destFile, &err)

	_, err = io.Copy(destFile, sourceFile)
	if err != nil {
		return err
	}

	return destFile.Sync()
}

// CloseFile closes a file opened for writing and stores the close error in
// *err unless an earlier error is already there. Use it deferred with a
// named error result.
func CloseFile(file *os.File, err *error) {
	if cerr := file.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("failed to close %s: %w", file.Name(), cerr)
	}
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// RemoveIfExists removes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

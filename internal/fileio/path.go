package fileio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// targetMarker is inserted between the source stem and the run ID when a
// target path is derived rather than configured.
const targetMarker = "cleaned"

// ValidateFilePath validates a file path for path traversal and invalid
// characters. Uses segment-based detection so that "data/../etc/passwd"
// is rejected before cleaning (the cleaned path would be "etc/passwd"
// and could bypass a simple ".." check). Returns an error if the path is
// empty, contains null bytes, or has ".." in any segment.
func ValidateFilePath(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.Contains(filePath, "\x00") {
		return fmt.Errorf("file path contains invalid characters")
	}

	normalized := filepath.ToSlash(filePath)
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return fmt.Errorf("file path contains path traversal: %q", filePath)
		}
	}
	return nil
}

// TargetPath returns the file the cleaned batch is written to. A
// non-empty outputPath is validated and used as is. Otherwise the path
// derives from the source file: same directory, the source stem with
// "-cleaned-<runID>" appended, and the extension for the target format,
// e.g. "data/posts.jsonl" becomes "data/posts-cleaned-<runID>.jsonl".
func TargetPath(outputPath, sourcePath, runID, format string) (string, error) {
	if outputPath != "" {
		if err := ValidateFilePath(outputPath); err != nil {
			return "", err
		}
		return outputPath, nil
	}

	if err := ValidateFilePath(sourcePath); err != nil {
		return "", err
	}
	ext, err := extensionFor(format)
	if err != nil {
		return "", err
	}

	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := stem + "-" + targetMarker
	if runID != "" {
		name += "-" + runID
	}
	return filepath.Join(filepath.Dir(sourcePath), name+ext), nil
}

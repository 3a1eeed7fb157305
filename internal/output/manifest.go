package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nao1215/wikiexport/internal/model"
)

// maxManifestLine bounds one manifest line when reading it back.
const maxManifestLine = 1024 * 1024

// manifest appends one JSON object per line to manifest.jsonl.
type manifest struct {
	path string
	file *os.File
}

func openManifest(path string) (*manifest, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // export files are meant to be shared
	if err != nil {
		return nil, &model.IOError{Op: "open manifest", Path: path, Err: err}
	}
	return &manifest{path: path, file: f}, nil
}

// append writes entry as one complete line in a single write and syncs it,
// so an interrupted run never leaves a partial line behind.
func (m *manifest) append(entry model.ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal manifest entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := m.file.Write(line); err != nil {
		return &model.IOError{Op: "append manifest", Path: m.path, Err: err}
	}
	if err := m.file.Sync(); err != nil {
		return &model.IOError{Op: "sync manifest", Path: m.path, Err: err}
	}
	return nil
}

func (m *manifest) close() error {
	if err := m.file.Close(); err != nil {
		return &model.IOError{Op: "close manifest", Path: m.path, Err: err}
	}
	return nil
}

// ReadManifest parses a manifest.jsonl file. Blank lines are ignored.
func ReadManifest(path string) ([]model.ManifestEntry, error) {
	f, err := os.Open(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []model.ManifestEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxManifestLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry model.ManifestEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return entries, nil
}

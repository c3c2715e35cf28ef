package upchuk

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type fileMode int

const (
	modeRead fileMode = iota
	modeAppend
)

type fileBackend struct {
	path string
}

// ResolvePath returns <baseDir>/upchuk/<fileName>, creating the app directory.
// An empty baseDir falls back to the per-user config directory.
func ResolvePath(baseDir string, fileName string) (string, error) {
	if baseDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil || dir == "" {
			return "", fmt.Errorf("%w: %v", ErrConfigDirUnavailable, err)
		}
		baseDir = dir
	}
	dir := filepath.Join(baseDir, AppDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, fileName), nil
}

func FileOpen(baseDir string) (*fileBackend, error) {
	path, err := ResolvePath(baseDir, UrlFileName)
	if err != nil {
		return nil, err
	}
	return &fileBackend{path: path}, nil
}

func (f *fileBackend) open(mode fileMode) (*os.File, bool, error) {
	switch mode {
	case modeAppend:
		file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, false, fmt.Errorf("open %s: %w", f.path, err)
		}
		return file, false, nil
	default:
		created := false
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			file, err := os.Create(f.path)
			if err != nil {
				return nil, false, fmt.Errorf("create %s: %w", f.path, err)
			}
			_ = file.Close()
			created = true
		} else if err != nil {
			return nil, false, fmt.Errorf("stat %s: %w", f.path, err)
		}
		file, err := os.Open(f.path)
		if err != nil {
			return nil, false, fmt.Errorf("open %s: %w", f.path, err)
		}
		return file, created, nil
	}
}

func (f *fileBackend) ReadAll() (*ReadReport, error) {
	file, created, err := f.open(modeRead)
	if err != nil {
		return nil, err
	}
	defer func(file *os.File) {
		_ = file.Close()
	}(file)

	report := &ReadReport{Records: make([]UrlRecord, 0), Created: created}
	reader := bufio.NewReader(file)
	lineNo := 0
	for {
		raw, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("read %s: %w", f.path, readErr)
		}
		if readErr != nil && raw == "" {
			break
		}
		lineNo++
		raw = strings.TrimRight(raw, "\r\n")
		if strings.TrimSpace(raw) != "" {
			rec, err := decodeRecord(raw)
			if err != nil {
				report.Skipped = append(report.Skipped, SkippedLine{Line: lineNo, Raw: raw, Err: err})
			} else {
				report.Records = append(report.Records, *rec)
			}
		}
		if readErr != nil {
			break
		}
	}
	return report, nil
}

func decodeRecord(raw string) (*UrlRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	for _, key := range []string{"url", "date"} {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("%w: missing field `%s`", ErrMalformedRecord, key)
		}
	}
	var rec UrlRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if rec.Url == "" || rec.Date == "" {
		return nil, fmt.Errorf("%w: empty url or date", ErrMalformedRecord)
	}
	return &rec, nil
}

func (f *fileBackend) Append(rec *UrlRecord) error {
	if rec == nil || rec.Url == "" {
		return errors.New("refusing to append an empty record")
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	file, _, err := f.open(modeAppend)
	if err != nil {
		return err
	}
	if _, err = file.Write(append(line, '\n')); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return file.Close()
}

// Stamp is the file size and modification time. The file only grows, so
// any append shows up in the size even within one mtime tick.
func (f *fileBackend) Stamp() (string, error) {
	info, err := os.Stat(f.path)
	if os.IsNotExist(err) {
		return "missing", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", f.path, err)
	}
	return fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano()), nil
}

func (f *fileBackend) Path() string {
	return f.path
}

func (f *fileBackend) Close() error {
	return nil
}

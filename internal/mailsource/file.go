package mailsource

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mailtriage/internal/models"

	"github.com/rs/zerolog"
)

// FileSource reads messages from a directory of .eml files, a single .eml
// file, or an mbox file. Later entries are treated as newer.
type FileSource struct {
	path   string
	logger zerolog.Logger
}

// NewFileSource creates a source over path
func NewFileSource(path string, logger zerolog.Logger) (*FileSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open mail path: %w", err)
	}
	return &FileSource{
		path:   path,
		logger: logger.With().Str("component", "file_source").Str("path", path).Logger(),
	}, nil
}

// FetchBatch returns the newest limit messages, newest first. A limit of
// zero or less returns everything.
func (s *FileSource) FetchBatch(ctx context.Context, limit int) ([]models.RawMessage, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat mail path: %w", err)
	}

	var messages []models.RawMessage
	switch {
	case info.IsDir():
		messages, err = s.readEMLDir(ctx)
	case strings.EqualFold(filepath.Ext(s.path), ".eml"):
		var data []byte
		data, err = os.ReadFile(s.path)
		if err == nil && len(bytes.TrimSpace(data)) > 0 {
			messages = []models.RawMessage{{Data: data}}
		}
	default:
		messages, err = s.readMBOX(ctx)
	}
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	// Newest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	s.logger.Info().Int("count", len(messages)).Msg("Loaded messages from disk")
	return messages, nil
}

func (s *FileSource) readEMLDir(ctx context.Context) ([]models.RawMessage, error) {
	var files []string
	err := filepath.Walk(s.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.EqualFold(filepath.Ext(path), ".eml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	sort.Strings(files)

	messages := make([]models.RawMessage, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", file).Msg("Skipping unreadable EML file")
			continue
		}
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		messages = append(messages, models.RawMessage{Data: data})
	}
	return messages, nil
}

// readMBOX splits an mbox file on "From " separator lines
func (s *FileSource) readMBOX(ctx context.Context) ([]models.RawMessage, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MBOX file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing MBOX file")
		}
	}()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024) // 10MB max line

	var messages []models.RawMessage
	var current bytes.Buffer

	flush := func() {
		if len(bytes.TrimSpace(current.Bytes())) > 0 {
			data := make([]byte, current.Len())
			copy(data, current.Bytes())
			messages = append(messages, models.RawMessage{Data: data})
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "From ") {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			flush()
			continue
		}

		// mboxrd escaping of body lines that start with "From "
		if strings.HasPrefix(line, ">") && strings.HasPrefix(strings.TrimLeft(line, ">"), "From ") {
			line = line[1:]
		}

		current.WriteString(line)
		current.WriteString("\r\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read MBOX file: %w", err)
	}
	flush()

	return messages, nil
}

package corpus

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"supportbot/internal/domain"
)

// File reads a corpus from a local .json, .yaml/.yml or .csv file.
// JSON and YAML hold a list of {question, answer} objects; CSV needs a header row
// naming the question and answer columns.
type File struct {
	path string
}

func NewFile(path string) *File { return &File{path: path} }

func (f *File) Name() string { return "file:" + f.path }

func (f *File) Load(ctx context.Context) ([]domain.FAQEntry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var entries []domain.FAQEntry
	switch ext := strings.ToLower(filepath.Ext(f.path)); ext {
	case ".json":
		err = json.Unmarshal(data, &entries)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &entries)
	case ".csv":
		entries, err = parseCSV(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported corpus format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return clean(entries)
}

func parseCSV(r io.Reader) ([]domain.FAQEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	qi, ai := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "question":
			qi = i
		case "answer":
			ai = i
		}
	}
	if qi < 0 || ai < 0 {
		return nil, errors.New("csv header must contain question and answer columns")
	}
	var entries []domain.FAQEntry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if qi >= len(rec) || ai >= len(rec) {
			continue
		}
		entries = append(entries, domain.FAQEntry{Question: rec[qi], Answer: rec[ai]})
	}
	return entries, nil
}

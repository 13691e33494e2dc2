// Package fsdocs loads documents for ingestion from a directory of markdown
// or plain text files, with an optional metadata.json sidecar.
package fsdocs

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/AyushPanchal/Medha/internal/core/ingest"
)

// metadataFile is the sidecar mapping file names to document metadata.
const metadataFile = "metadata.json"

// FileMetadata is one metadata.json entry, keyed by file name.
type FileMetadata struct {
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Summary string   `json:"summary"`
	Entity  string   `json:"entity"`
}

// Load walks dir recursively and reads every .md and .txt file into a
// document. The document ID is the slash-separated path relative to dir with
// the extension trimmed; the source entity comes from the metadata entry when
// present, otherwise the file name stem. Metadata entries are keyed by the
// same relative path.
func Load(dir string) ([]*ingest.Document, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("read document directory: %w", err)
	}

	metadata, err := loadMetadata(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}

	var docs []*ingest.Document
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".md" && ext != ".txt" {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read document %s: %w", rel, err)
		}

		stem := strings.TrimSuffix(rel, filepath.Ext(rel))
		doc := &ingest.Document{
			ID:           stem,
			SourceEntity: strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Text:         string(content),
			Metadata:     map[string]string{"filename": rel},
		}

		if meta, ok := metadata[rel]; ok {
			if meta.Entity != "" {
				doc.SourceEntity = meta.Entity
			}
			if meta.Title != "" {
				doc.Metadata["title"] = meta.Title
			}
			if meta.Summary != "" {
				doc.Metadata["summary"] = meta.Summary
			}
			if len(meta.Tags) > 0 {
				doc.Metadata["tags"] = strings.Join(meta.Tags, ",")
			}
		}

		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

// loadMetadata parses metadata.json; a missing file means no metadata.
func loadMetadata(path string) (map[string]FileMetadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", metadataFile, err)
	}

	var metadata map[string]FileMetadata
	if err := json.Unmarshal(content, &metadata); err != nil {
		return nil, fmt.Errorf("parse %s: %w", metadataFile, err)
	}
	return metadata, nil
}

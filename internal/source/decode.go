// Package source loads dependency-graph snapshots from outside the server:
// local JSON or YAML files, S3 objects published by the analysis pipeline,
// and a replay directory that receives one snapshot per sampled commit.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vyuha/vyuha-scene/internal/graph"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("source: unsupported snapshot format")

// Format is a snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// Source produces snapshots.
type Source interface {
	Fetch(ctx context.Context) (*graph.Snapshot, error)
	Name() string
}

// Decode reads one snapshot and normalises it.
func Decode(r io.Reader, format Format) (*graph.Snapshot, graph.NormalizeReport, error) {
	var snap graph.Snapshot
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&snap); err != nil {
			return nil, graph.NormalizeReport{}, fmt.Errorf("source: decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
			return nil, graph.NormalizeReport{}, fmt.Errorf("source: decode yaml: %w", err)
		}
	default:
		return nil, graph.NormalizeReport{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	rep, err := snap.Normalize()
	if err != nil {
		return nil, rep, err
	}
	return &snap, rep, nil
}

// ---------------------------------------------------------------------------
// FileSource
// ---------------------------------------------------------------------------

// FileSource reads a snapshot from a local file.
type FileSource struct {
	Path string
}

// NewFileSource returns a source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Name implements Source.
func (f *FileSource) Name() string { return "file:" + f.Path }

// Fetch implements Source.
func (f *FileSource) Fetch(ctx context.Context) (*graph.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, err := FormatFromPath(f.Path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", f.Path, err)
	}
	defer fh.Close()

	snap, _, err := Decode(fh, format)
	if err != nil {
		return nil, fmt.Errorf("source: %s: %w", f.Path, err)
	}
	return snap, nil
}

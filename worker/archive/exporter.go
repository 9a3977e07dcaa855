// Package archive bundles converted outputs into a single downloadable ZIP.
// Packaging succeeds per item: one unfetchable image is excluded and
// reported, the rest still ship.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"imageConverter/worker/codec"
)

// Input names one converted image eligible for packaging.
type Input struct {
	ID     string
	Name   string
	Format codec.Format
}

// FetchFunc loads the converted bytes for one input.
type FetchFunc func(ctx context.Context, in Input) ([]byte, error)

// Entry is a single (filename, bytes) pair handed to the packer.
type Entry struct {
	Name string
	Data []byte
}

// Result reports a completed export. FailedImages lists the ids of items
// whose bytes could not be fetched; the archive still contains the rest.
type Result struct {
	Archive      []byte
	Packed       []string
	FailedImages []string
}

type Exporter struct {
	logger *zap.Logger
}

func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Export packages the given inputs, optionally filtered to a caller-selected
// id subset. Fetch failures are local to the item; only a packaging-stage
// failure rejects the whole export.
func (e *Exporter) Export(ctx context.Context, inputs []Input, ids []string, fetch FetchFunc) (*Result, error) {
	selected := inputs
	if len(ids) > 0 {
		want := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			want[id] = struct{}{}
		}
		selected = selected[:0:0]
		for _, in := range inputs {
			if _, ok := want[in.ID]; ok {
				selected = append(selected, in)
			}
		}
	}

	result := &Result{}
	entries := make([]Entry, 0, len(selected))
	names := make(map[string]int, len(selected))

	for _, in := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := fetch(ctx, in)
		if err != nil {
			e.logger.Warn("Excluding image from archive",
				zap.String("item_id", in.ID),
				zap.String("filename", in.Name),
				zap.Error(err),
			)
			result.FailedImages = append(result.FailedImages, in.ID)
			continue
		}

		name := outputName(in.Name, in.Format, names)
		entries = append(entries, Entry{Name: name, Data: data})
		result.Packed = append(result.Packed, in.ID)
	}

	archived, err := Pack(entries)
	if err != nil {
		return nil, err
	}

	result.Archive = archived
	return result, nil
}

// Pack writes the entries into an in-memory ZIP.
func Pack(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, entry := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   entry.Name,
			Method: zip.Deflate,
		})
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", entry.Name, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", entry.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// outputName strips the original extension and appends the target format's.
// Colliding names get a numeric suffix instead of silently overwriting.
func outputName(original string, format codec.Format, seen map[string]int) string {
	base := strings.TrimSuffix(original, filepath.Ext(original))
	if base == "" {
		base = original
	}

	ext := format.Ext()
	name := base + ext
	if seen[name] == 0 {
		seen[name] = 1
		return name
	}

	for i := seen[name]; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if seen[candidate] == 0 {
			seen[name] = i + 1
			seen[candidate] = 1
			return candidate
		}
	}
}

// Package storage lays out batch files on disk:
//
//	<root>/original/<batchID>/<itemID>   uploaded bytes
//	<root>/converted/<batchID>/<itemID><ext>  encoded outputs
//	<root>/previews/<handle>             tracker-owned preview files
package storage

import (
	"io"
	"os"
	"path/filepath"
)

type FileStorage interface {
	Save(path string, data io.Reader) error
	Read(path string) ([]byte, error)
	Delete(path string) error
	Exists(path string) bool
}

type fileStorage struct {
	basePath string
}

func NewFileStorage(basePath string) FileStorage {
	return &fileStorage{basePath: basePath}
}

// OriginalPath is the storage-relative location of an item's uploaded bytes.
func OriginalPath(batchID, itemID string) string {
	return filepath.Join("original", batchID, itemID)
}

// ConvertedPath is the storage-relative location of an item's encoded output.
func ConvertedPath(batchID, itemID, ext string) string {
	return filepath.Join("converted", batchID, itemID+ext)
}

// PreviewDir is the absolute directory the resource tracker writes to.
func PreviewDir(basePath string) string {
	return filepath.Join(basePath, "previews")
}

// BatchDirs lists the storage-relative directories owned by a batch.
func BatchDirs(batchID string) []string {
	return []string{
		filepath.Join("original", batchID),
		filepath.Join("converted", batchID),
	}
}

func (s *fileStorage) Save(path string, data io.Reader) error {
	fullPath := filepath.Join(s.basePath, path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, data)
	return err
}

func (s *fileStorage) Read(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.basePath, path))
}

func (s *fileStorage) Delete(path string) error {
	return os.RemoveAll(filepath.Join(s.basePath, path))
}

func (s *fileStorage) Exists(path string) bool {
	_, err := os.Stat(filepath.Join(s.basePath, path))
	return !os.IsNotExist(err)
}

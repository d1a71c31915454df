package devapi

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"rtadmin/internal/core"
)

const ktpDir = "ktp_photos"

// FileStore keeps uploaded files on disk under a root directory. Stored
// paths are relative and slash separated, e.g. "ktp_photos/<uuid>.jpg".
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// SaveKTP writes the photo under a fresh name and returns its stored path.
func (f *FileStore) SaveKTP(u core.Upload) (string, error) {
	rel := path.Join(ktpDir, uuid.NewString()+uploadExt(u))
	full := filepath.Join(f.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create storage directory: %w", err)
	}
	if err := os.WriteFile(full, u.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	return rel, nil
}

// Remove deletes a stored file; a missing file is not an error.
func (f *FileStore) Remove(rel string) error {
	if rel == "" || strings.Contains(rel, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(f.root, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Handler serves individual stored files. Directories answer 404 so the
// names of uploaded KTP photos cannot be listed.
func (f *FileStore) Handler() http.Handler {
	files := http.FileServer(filesOnly{http.Dir(f.root)})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// filesOnly hides directories from http.FileServer.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

func uploadExt(u core.Upload) string {
	switch u.ContentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	if ext := strings.ToLower(path.Ext(u.Filename)); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".jpg"
}

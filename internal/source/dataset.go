package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/RudraShekhare/face-attendance-system/internal/logger"
	"github.com/facette/natsort"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsImageFile reports whether name has a supported image extension.
func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Dataset is the reference image tree: <root>/<identity>/<image>.
// Identities and files are listed in natural sort order, so "10.jpg"
// follows "9.jpg". Hidden entries and non-image files are ignored.
type Dataset struct {
	root string

	mu    sync.Mutex
	items []ImageItem
}

// NewDataset creates a dataset rooted at root.
func NewDataset(root string) *Dataset {
	return &Dataset{root: root}
}

// Root returns the dataset directory.
func (d *Dataset) Root() string { return d.root }

// GetSourceID returns the unique identifier for this source.
func (d *Dataset) GetSourceID() string {
	return "dataset:" + d.root
}

// folder is one identity directory and the label its name normalizes to.
type folder struct {
	dir      string
	identity string
}

// folders lists identity directories in natural order. Folders whose name is
// not a valid identity are skipped with a warning. A missing root is
// domain.ErrNotFound.
func (d *Dataset) folders() ([]folder, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("dataset %s: %w", d.root, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && !isHidden(e.Name()) {
			names = append(names, e.Name())
		}
	}
	natsort.Sort(names)

	out := make([]folder, 0, len(names))
	for _, name := range names {
		identity, err := domain.NormalizeIdentity(name)
		if err != nil {
			logger.GetDefault().WithField(logger.FieldPath, filepath.Join(d.root, name)).
				WithError(err).Warn("Skipping dataset folder with invalid identity name")
			continue
		}
		out = append(out, folder{dir: name, identity: identity})
	}
	return out, nil
}

// Identities returns the normalized identities in natural folder order.
func (d *Dataset) Identities() ([]string, error) {
	folders, err := d.folders()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(folders))
	var out []string
	for _, f := range folders {
		if !seen[f.identity] {
			seen[f.identity] = true
			out = append(out, f.identity)
		}
	}
	return out, nil
}

// Images returns the image files of one identity in natural order. Every
// folder whose name normalizes to identity contributes.
func (d *Dataset) Images(identity string) ([]ImageItem, error) {
	name, err := domain.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}
	folders, err := d.folders()
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("identity folder %s: %w", filepath.Join(d.root, name), domain.ErrNotFound)
		}
		return nil, err
	}

	var items []ImageItem
	found := false
	for _, f := range folders {
		if f.identity != name {
			continue
		}
		found = true
		files, err := d.folderImages(f)
		if err != nil {
			return nil, err
		}
		items = append(items, files...)
	}
	if !found {
		return nil, fmt.Errorf("identity folder %s: %w", filepath.Join(d.root, name), domain.ErrNotFound)
	}
	for i := range items {
		items[i].Seq = i
	}
	return items, nil
}

func (d *Dataset) folderImages(f folder) ([]ImageItem, error) {
	dir := filepath.Join(d.root, f.dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity folder: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && !isHidden(e.Name()) && IsImageFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Slice(files, func(i, j int) bool { return natsort.Compare(files[i], files[j]) })

	items := make([]ImageItem, 0, len(files))
	for _, name := range files {
		items = append(items, ImageItem{
			Identity: f.identity,
			Name:     name,
			Path:     filepath.Join(dir, name),
		})
	}
	return items, nil
}

// List returns every image of every identity, identities first, then files.
func (d *Dataset) List() ([]ImageItem, error) {
	folders, err := d.folders()
	if err != nil {
		return nil, err
	}

	var all []ImageItem
	for _, f := range folders {
		items, err := d.folderImages(f)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			it.Seq = len(all)
			all = append(all, it)
		}
	}
	return all, nil
}

// FetchBatch pages through List. An empty cursor takes a fresh listing.
func (d *Dataset) FetchBatch(ctx context.Context, cursor string, limit int) ([]ImageItem, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if cursor == "" || d.items == nil {
		items, err := d.List()
		if err != nil {
			return nil, "", err
		}
		d.items = items
	}

	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 {
			return nil, "", fmt.Errorf("invalid cursor: %q", cursor)
		}
	}
	if start >= len(d.items) {
		return []ImageItem{}, "", nil
	}

	end := start + limit
	if limit <= 0 || end > len(d.items) {
		end = len(d.items)
	}

	next := ""
	if end < len(d.items) {
		next = strconv.Itoa(end)
	}
	return d.items[start:end], next, nil
}

// SaveImage writes data as <root>/<identity>/<name>, creating the folder.
// The file appears atomically.
func (d *Dataset) SaveImage(identity, name string, data []byte) (string, error) {
	if name != filepath.Base(name) || isHidden(name) {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	dir := filepath.Join(d.root, identity)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create identity folder: %w", err)
	}

	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return path, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

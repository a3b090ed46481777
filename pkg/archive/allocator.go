package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/umputun/postkit/pkg/domain"
)

const defaultSlug = "article"

// Slot is a reserved slug inside a day directory, shared by all artifacts of one article
type Slot struct {
	Root string
	Dir  string
	Slug string
}

// Path returns the absolute artifact path for ext (with leading dot)
func (s Slot) Path(ext string) string {
	return filepath.Join(s.Dir, s.Slug+ext)
}

// Rel returns the artifact path relative to the archive root, with forward slashes
func (s Slot) Rel(ext string) string {
	rel, err := filepath.Rel(s.Root, s.Path(ext))
	if err != nil {
		return filepath.ToSlash(s.Path(ext))
	}
	return filepath.ToSlash(rel)
}

// Allocator hands out collision-free artifact paths in a {root}/{YYYY}/{MM}/{DD} tree.
// A slug is never handed out twice by the same allocator; slugs with existing files
// on disk are skipped unless overwrite is set. Allocation is serialized per directory.
type Allocator struct {
	root      string
	overwrite bool

	mu   sync.Mutex
	dirs map[string]*dirSlugs
}

type dirSlugs struct {
	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewAllocator makes an allocator for the archive rooted at root
func NewAllocator(root string, overwrite bool) *Allocator {
	return &Allocator{root: filepath.Clean(root), overwrite: overwrite, dirs: map[string]*dirSlugs{}}
}

// DayDir returns the date-partitioned directory for date
func DayDir(root string, date domain.Date) string {
	return filepath.Join(root, fmt.Sprintf("%04d", date.Year), fmt.Sprintf("%02d", int(date.Month)), fmt.Sprintf("%02d", date.Day))
}

// Reserve picks a slug from title (or link when the title gives none) that is free for every
// extension in exts, creating the day directory as needed. Taken slugs get -2, -3, ... suffixes.
func (a *Allocator) Reserve(date domain.Date, title, link string, exts ...string) (Slot, error) {
	dir := DayDir(a.root, date)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Slot{}, fmt.Errorf("%w: create %s: %w", domain.ErrFileSystem, dir, err)
	}

	base := Slugify(title)
	if base == "" {
		base = SlugFromURL(link)
	}
	if base == "" {
		base = defaultSlug
	}

	ds := a.dirState(dir)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	for n := 1; ; n++ {
		slug := base
		if n > 1 {
			slug = base + "-" + strconv.Itoa(n)
		}
		if _, taken := ds.reserved[slug]; taken {
			continue
		}
		if !a.overwrite {
			exists, err := anyExists(dir, slug, exts)
			if err != nil {
				return Slot{}, err
			}
			if exists {
				continue
			}
		}
		ds.reserved[slug] = struct{}{}
		return Slot{Root: a.root, Dir: dir, Slug: slug}, nil
	}
}

// Allocate returns a unique path for a single artifact
func (a *Allocator) Allocate(date domain.Date, title, link, ext string) (string, error) {
	slot, err := a.Reserve(date, title, link, ext)
	if err != nil {
		return "", err
	}
	return slot.Path(ext), nil
}

func (a *Allocator) dirState(dir string) *dirSlugs {
	a.mu.Lock()
	defer a.mu.Unlock()
	ds, ok := a.dirs[dir]
	if !ok {
		ds = &dirSlugs{reserved: map[string]struct{}{}}
		a.dirs[dir] = ds
	}
	return ds
}

func anyExists(dir, slug string, exts []string) (bool, error) {
	for _, ext := range exts {
		p := filepath.Join(dir, slug+ext)
		_, err := os.Lstat(p)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return false, fmt.Errorf("%w: stat %s: %w", domain.ErrFileSystem, p, err)
		}
	}
	return false, nil
}

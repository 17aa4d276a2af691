package organize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// maxDuplicateCounter bounds the collision suffix search.
const maxDuplicateCounter = 1000

// ErrTooManyCollisions is returned when the disambiguator counter is
// exhausted for a path.
var ErrTooManyCollisions = errors.New("too many filename collisions")

// PathOwner resolves which URL a previously written path belongs to.
// Implemented by the checkpoint store.
type PathOwner interface {
	PathOwner(relPath string) (url string, ok bool)
}

// Allocator moderates on-disk name allocation under one download root.
// All workers funnel path decisions through its single lock, so a
// check-then-create cannot race across two workers targeting the same
// computed path. The lock is scoped to the whole root, not per company.
type Allocator struct {
	root  string
	owner PathOwner

	mu       sync.Mutex
	reserved map[string]string // final relative path -> owning URL
}

// NewAllocator creates an Allocator rooted at root. owner may be nil, in
// which case every existing path counts as a collision.
func NewAllocator(root string, owner PathOwner) *Allocator {
	return &Allocator{
		root:     root,
		owner:    owner,
		reserved: make(map[string]string),
	}
}

// Reservation is a granted claim on a final path. The caller streams into
// TempPath, then either Commit renames it into place or Abort discards it.
type Reservation struct {
	alloc *Allocator

	// RelPath is the granted path relative to the download root,
	// including any collision suffix.
	RelPath string
	// AbsPath is the final absolute path.
	AbsPath string
	// TempPath is the absolute staging path to write into.
	TempPath string

	done bool
}

// Allocate grants a final path for normURL based on the organizer-computed
// relPath. When the path already belongs to normURL (same-URL re-download)
// it returns skip=true and no reservation. Foreign collisions are
// disambiguated with a numeric suffix before the extension.
func (a *Allocator) Allocate(relPath, normURL string) (res *Reservation, skip bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	dir, name := filepath.Split(relPath)
	candidate := relPath

	for n := 1; ; n++ {
		if owner, taken := a.pathOwnerLocked(candidate); taken {
			if owner == normURL {
				return nil, true, nil
			}
			if n > maxDuplicateCounter {
				return nil, false, fmt.Errorf("%w: %s", ErrTooManyCollisions, relPath)
			}
			candidate = filepath.Join(dir, suffixed(name, n))
			continue
		}
		break
	}

	abs := filepath.Join(a.root, candidate)
	if mkErr := os.MkdirAll(filepath.Dir(abs), 0o755); mkErr != nil {
		return nil, false, fmt.Errorf("create directory: %w", mkErr)
	}

	a.reserved[candidate] = normURL

	return &Reservation{
		alloc:    a,
		RelPath:  candidate,
		AbsPath:  abs,
		TempPath: abs + ".part",
	}, false, nil
}

// pathOwnerLocked reports whether candidate is taken, either by an
// in-flight reservation or by a file already on disk, and by which URL.
func (a *Allocator) pathOwnerLocked(candidate string) (owner string, taken bool) {
	if url, ok := a.reserved[candidate]; ok {
		return url, true
	}

	if _, statErr := os.Stat(filepath.Join(a.root, candidate)); statErr == nil {
		if a.owner != nil {
			if url, ok := a.owner.PathOwner(candidate); ok {
				return url, true
			}
		}
		return "", true
	}
	return "", false
}

// Commit renames the staged file into its final place and releases the
// reservation. The rename keeps the final path atomic for readers.
func (r *Reservation) Commit() error {
	if r.done {
		return nil
	}
	r.done = true

	if err := os.Rename(r.TempPath, r.AbsPath); err != nil {
		r.release()
		return fmt.Errorf("finalize %s: %w", r.RelPath, err)
	}
	// Keep the reservation entry: the path is now taken on disk and the
	// reserved URL lets same-pass lookups resolve ownership without the
	// checkpoint.
	return nil
}

// Abort removes the staged file and releases the reservation.
func (r *Reservation) Abort() {
	if r.done {
		return
	}
	r.done = true

	_ = os.Remove(r.TempPath)
	r.release()
}

func (r *Reservation) release() {
	r.alloc.mu.Lock()
	delete(r.alloc.reserved, r.RelPath)
	r.alloc.mu.Unlock()
}

// Package artifact persists identicon images and metadata records, one file
// of each per address. A unit is written all-or-nothing: either both new
// files land or the previous pair, if any, stays as it was.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/zarlcorp/civicid/internal/address"
	"github.com/zarlcorp/core/pkg/zfilesystem"
)

const (
	imageExt  = ".png"
	metaExt   = ".json"
	tmpSuffix = ".tmp"

	dirPerm  = 0o755
	filePerm = 0o644
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// WriteError reports a filesystem failure while persisting an artifact.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Dir is a directory of artifacts. Path is only used to report locations.
type Dir struct {
	FS   zfilesystem.ReadWriteFileFS
	Path string
}

func (d Dir) join(name string) string {
	if d.Path == "" {
		return name
	}
	return filepath.Join(d.Path, name)
}

// tmpSeq keeps temporary names unique when the same address is written
// concurrently.
var tmpSeq atomic.Uint64

// renamer is implemented by filesystems that can replace a file atomically.
type renamer interface {
	Rename(oldpath, newpath string) error
}

// osFS adds rename to an OS-backed zfilesystem.
type osFS struct {
	zfilesystem.ReadWriteFileFS
	root string
}

func (f osFS) Rename(oldpath, newpath string) error {
	return os.Rename(f.abs(oldpath), f.abs(newpath))
}

func (f osFS) abs(name string) string {
	return filepath.Join(f.root, filepath.FromSlash(name))
}

// OSDir creates path if needed and returns it as a Dir.
func OSDir(p string) (Dir, error) {
	if err := os.MkdirAll(p, dirPerm); err != nil {
		return Dir{}, &WriteError{Path: p, Err: err}
	}
	return Dir{
		FS:   osFS{ReadWriteFileFS: zfilesystem.NewOSFileSystem(p), root: p},
		Path: p,
	}, nil
}

// Paths locates the two artifacts of one address.
type Paths struct {
	Image    string `json:"image"`
	Metadata string `json:"metadata"`
}

// Store reads and writes artifacts.
type Store struct {
	images   Dir
	metadata Dir
}

// New returns a store writing images and metadata to separate directories.
// Both may share one filesystem.
func New(images, metadata Dir) *Store {
	return &Store{images: images, metadata: metadata}
}

// ImageName is the image file name for a.
func ImageName(a address.Address) string {
	return a.Hex() + imageExt
}

// MetadataName is the metadata file name for a.
func MetadataName(a address.Address) string {
	return a.Hex() + metaExt
}

// Save writes both artifacts for a. If either write fails, whatever was
// stored for a before the call is put back.
func (s *Store) Save(a address.Address, image, meta []byte) (Paths, error) {
	imgName := ImageName(a)
	metaName := MetadataName(a)

	img, err := stage(s.images, imgName, image)
	if err != nil {
		return Paths{}, err
	}
	md, err := stage(s.metadata, metaName, meta)
	if err != nil {
		img.discard()
		return Paths{}, err
	}

	if err := img.commit(); err != nil {
		img.undo()
		md.discard()
		return Paths{}, err
	}
	if err := md.commit(); err != nil {
		md.undo()
		img.undo()
		return Paths{}, err
	}

	return Paths{
		Image:    s.images.join(imgName),
		Metadata: s.metadata.join(metaName),
	}, nil
}

// pending is one artifact staged by Save, together with what it replaces.
type pending struct {
	d    Dir
	name string
	data []byte

	// tmp holds the staged copy until commit on filesystems that rename
	tmp  string
	prev []byte
	had  bool
}

func stage(d Dir, name string, data []byte) (*pending, error) {
	p := &pending{d: d, name: name, data: data}

	prev, err := d.FS.ReadFile(name)
	switch {
	case err == nil:
		p.prev, p.had = prev, true
	case !errors.Is(err, fs.ErrNotExist):
		return nil, &WriteError{Path: d.join(name), Err: err}
	}

	if _, ok := d.FS.(renamer); ok {
		tmp := tmpName(name)
		if err := d.FS.WriteFile(tmp, data, filePerm); err != nil {
			_ = d.FS.Remove(tmp)
			return nil, &WriteError{Path: d.join(name), Err: err}
		}
		p.tmp = tmp
	}
	return p, nil
}

// commit moves the staged data to its final name.
func (p *pending) commit() error {
	var err error
	if r, ok := p.d.FS.(renamer); ok {
		err = r.Rename(p.tmp, p.name)
	} else {
		err = p.d.FS.WriteFile(p.name, p.data, filePerm)
	}
	if err != nil {
		return &WriteError{Path: p.d.join(p.name), Err: err}
	}
	p.tmp = ""
	return nil
}

// discard drops a staged copy that was never committed.
func (p *pending) discard() {
	if p.tmp != "" {
		_ = p.d.FS.Remove(p.tmp)
	}
}

// undo reverts a commit, or a failed commit attempt, to the previous state.
func (p *pending) undo() {
	if p.tmp != "" {
		// rename failed, name is untouched
		p.discard()
		return
	}
	if p.had {
		_ = writeFile(p.d, p.name, p.prev)
		return
	}
	_ = p.d.FS.Remove(p.name)
}

// Image returns the stored PNG for a.
func (s *Store) Image(a address.Address) ([]byte, error) {
	return readFile(s.images, ImageName(a))
}

// Metadata returns the stored metadata record for a.
func (s *Store) Metadata(a address.Address) ([]byte, error) {
	return readFile(s.metadata, MetadataName(a))
}

// List returns every address with a metadata file, sorted by canonical
// form.
func (s *Store) List() ([]address.Address, error) {
	var out []address.Address

	err := s.metadata.FS.WalkDir(".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p == "." || p == "" {
				return nil
			}
			return fs.SkipDir
		}

		name := path.Base(filepath.ToSlash(p))
		if path.Ext(name) != metaExt {
			return nil
		}

		a, err := address.Parse(strings.TrimSuffix(name, metaExt))
		if err != nil {
			// not ours
			return nil
		}
		out = append(out, a)
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Hex() < out[j].Hex()
	})
	return out, nil
}

func tmpName(name string) string {
	return name + "." + strconv.FormatUint(tmpSeq.Add(1), 10) + tmpSuffix
}

// writeFile writes data to name, through a temporary file and rename when
// the filesystem supports it.
func writeFile(d Dir, name string, data []byte) error {
	r, ok := d.FS.(renamer)
	if !ok {
		if err := d.FS.WriteFile(name, data, filePerm); err != nil {
			return &WriteError{Path: d.join(name), Err: err}
		}
		return nil
	}

	tmp := tmpName(name)
	if err := d.FS.WriteFile(tmp, data, filePerm); err != nil {
		_ = d.FS.Remove(tmp)
		return &WriteError{Path: d.join(name), Err: err}
	}
	if err := r.Rename(tmp, name); err != nil {
		_ = d.FS.Remove(tmp)
		return &WriteError{Path: d.join(name), Err: err}
	}
	return nil
}

func readFile(d Dir, name string) ([]byte, error) {
	data, err := d.FS.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", d.join(name), err)
	}
	return data, nil
}

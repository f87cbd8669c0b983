package flare

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/catalog"
)

// dotEntries is the directory body a freshly initialized directory
// flare starts with: "." and ".." each NUL-terminated (spec.md §3
// Directory body, §4.3 init()).
var dotEntries = []byte(".\x00..\x00")

// Store is the per-node on-disk hashpath store plus its catalog,
// implementing spec.md §4.3's init/save/load/erase.
type Store struct {
	HashpathDir string
	Catalog     *catalog.Catalog
}

// NewStore returns a Store rooted at hashpathDir, creating the
// directory if it does not exist.
func NewStore(hashpathDir string, cat *catalog.Catalog) (*Store, error) {
	if err := os.MkdirAll(hashpathDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create hashpath dir %s", hashpathDir)
	}
	return &Store{HashpathDir: hashpathDir, Catalog: cat}, nil
}

// Init creates f.Contents if it is absent, per spec.md §4.3 init():
// directories get the four-byte ".\0..\0" body; char/block/FIFO use the
// OS node-creation primitive with the flare's rdev; regular files and
// symlinks are created empty.
func (s *Store) Init(f *Flare) error {
	if _, err := os.Stat(f.Contents); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %s", f.Contents)
	}

	switch f.Type {
	case TypeDir:
		if err := os.WriteFile(f.Contents, dotEntries, 0o755); err != nil {
			return errors.Wrapf(err, "init directory %s", f.Path)
		}
	case TypeCharDev, TypeBlockDev, TypeFIFO:
		mode := uint32(0o644)
		switch f.Type {
		case TypeCharDev:
			mode |= unix.S_IFCHR
		case TypeBlockDev:
			mode |= unix.S_IFBLK
		case TypeFIFO:
			mode |= unix.S_IFIFO
		}
		if err := unix.Mknod(f.Contents, mode, int(f.Stat.Rdev)); err != nil {
			return errors.Wrapf(err, "mknod %s", f.Path)
		}
	default: // regular file, symlink
		if err := os.WriteFile(f.Contents, nil, 0o644); err != nil {
			return errors.Wrapf(err, "init file %s", f.Path)
		}
	}
	return nil
}

// Save persists f, per spec.md §4.3 save(): Init if not already on
// disk, insert the catalog row when firstTime, then chmod the on-disk
// file to match the flare's mode.
func (s *Store) Save(f *Flare, firstTime bool) error {
	if err := s.Init(f); err != nil {
		return err
	}

	if firstTime {
		row := catalog.FlareRow{
			Hash:       string(f.Hash),
			Path:       f.Path,
			ParentHash: string(f.ParentHash),
			Type:       string(rune(f.Type)),
			CommitPath: f.CommitPath,
			CommitTime: catalog.Now().Unix(),
			CommitURL:  f.CommitURL,
			UID:        f.Stat.UID,
			GID:        f.Stat.GID,
		}
		if err := s.Catalog.InsertFlare(row); err != nil {
			return errors.Wrap(err, "save flare metadata")
		}
		f.CommitTime = catalog.Now()
	}

	if f.Type != TypeCharDev && f.Type != TypeBlockDev && f.Type != TypeFIFO {
		if err := os.Chmod(f.Contents, os.FileMode(f.Stat.Mode&0o7777)); err != nil {
			return errors.Wrapf(err, "chmod %s", f.Path)
		}
	}
	return nil
}

// Load reads on-disk size/blocks/blksize plus the catalog row for f,
// and upcasts its Type, per spec.md §4.3 load().
func (s *Store) Load(f *Flare) error {
	info, err := os.Stat(f.Contents)
	if err != nil {
		return errors.Wrapf(err, "stat %s", f.Contents)
	}
	f.Stat.Size = uint64(info.Size())
	f.Stat.Blksize = 4096
	f.Stat.Blocks = (f.Stat.Size + 511) / 512
	f.Stat.Mtime = info.ModTime()

	row, err := s.Catalog.GetFlareByHash(string(f.Hash))
	if err != nil {
		return errors.Wrapf(err, "load catalog row for %s", f.Path)
	}

	f.Type = Type(row.Type[0])
	f.CommitPath = row.CommitPath
	f.CommitTime = time.Unix(row.CommitTime, 0)
	f.Stat.UID = row.UID
	f.Stat.GID = row.GID
	f.IsUpcasted = true
	return nil
}

// Erase removes f's on-disk contents and catalog row, per spec.md §4.3
// erase(). Cache removal is the caller's (Cache.Evict) responsibility.
func (s *Store) Erase(f *Flare) error {
	if err := os.Remove(f.Contents); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "unlink %s", f.Contents)
	}
	if err := s.Catalog.DeleteFlare(string(f.Hash)); err != nil {
		return errors.Wrap(err, "erase flare metadata")
	}
	return nil
}

// Exists reports whether f.Contents is present on disk.
func (s *Store) Exists(f *Flare) bool {
	_, err := os.Stat(f.Contents)
	return err == nil
}

// Statfs returns the OS statfs of the node's hashpath directory, per
// spec.md §4.6 statfs.
func (s *Store) Statfs() (unix.Statfs_t, error) {
	var st unix.Statfs_t
	err := unix.Statfs(s.HashpathDir, &st)
	return st, errors.Wrap(err, "statfs hashpath")
}

// AbsContentsPath computes the deterministic on-disk path for a hash
// without constructing a full Flare, used by directory/replication code
// that only needs the path.
func (s *Store) AbsContentsPath(hash string) string {
	return filepath.Join(s.HashpathDir, hash)
}

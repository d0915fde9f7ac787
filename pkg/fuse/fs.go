// Package fuse mounts a Kestra namespace as a FUSE filesystem.
//
// Nodes hold only their virtual path. Every attribute, listing and read goes
// through a kestrafs.Provider, so nothing is cached between calls.
package fuse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"

	"github.com/kestra-io/kestrafs/internal/logging"
	"github.com/kestra-io/kestrafs/pkg/client"
	"github.com/kestra-io/kestrafs/pkg/kestrafs"
	"github.com/kestra-io/kestrafs/pkg/models"
)

// Config holds mount options.
type Config struct {
	Namespace  string
	AllowOther bool
	Debug      bool
	// AttrTimeout is how long the kernel may cache attributes. Zero disables caching.
	AttrTimeout time.Duration
}

// FS is a mounted namespace.
type FS struct {
	provider kestrafs.Provider
	cfg      Config
	uid      uint32
	gid      uint32
}

// New returns a filesystem serving provider.
func New(provider kestrafs.Provider, cfg Config) *FS {
	return &FS{
		provider: provider,
		cfg:      cfg,
		uid:      uint32(os.Getuid()),
		gid:      uint32(os.Getgid()),
	}
}

// Root returns the root node, which maps to /<namespace>.
func (f *FS) Root() *Node {
	return &Node{fsys: f, path: "/" + f.cfg.Namespace, dir: true}
}

// Mount mounts the filesystem at mountPoint.
func (f *FS) Mount(mountPoint string) (*gofuse.Server, error) {
	if err := os.MkdirAll(mountPoint, 0755); err != nil {
		return nil, fmt.Errorf("create mount point: %w", err)
	}

	timeout := f.cfg.AttrTimeout
	opts := &fs.Options{
		MountOptions: gofuse.MountOptions{
			AllowOther: f.cfg.AllowOther,
			Debug:      f.cfg.Debug,
			FsName:     "kestra:" + f.cfg.Namespace,
			Name:       "kestrafs",
		},
		EntryTimeout:    &timeout,
		AttrTimeout:     &timeout,
		NegativeTimeout: &timeout,
		UID:             f.uid,
		GID:             f.gid,
	}

	server, err := fs.Mount(mountPoint, f.Root(), opts)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}

	logging.Info("namespace mounted",
		logging.String("namespace", f.cfg.Namespace),
		logging.String("mountpoint", mountPoint),
	)
	return server, nil
}

// Errno maps adapter errors onto FUSE status codes.
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, kestrafs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, kestrafs.ErrPermissionDenied), client.IsAuthFailure(err):
		return syscall.EACCES
	case errors.Is(err, context.Canceled):
		return syscall.EINTR
	}
	if _, ok := client.AsValidation(err); ok {
		return syscall.EINVAL
	}
	return syscall.EIO
}

func (f *FS) fail(op, p string, err error) syscall.Errno {
	errno := Errno(err)
	if errno == syscall.EIO {
		logging.Error("filesystem operation failed",
			logging.String("op", op),
			logging.String("path", p),
			logging.Err(err),
		)
	} else {
		logging.Debug("filesystem operation rejected",
			logging.String("op", op),
			logging.String("path", p),
			logging.Err(err),
		)
	}
	return errno
}

func (f *FS) fillAttr(st models.FileStat, out *gofuse.Attr) {
	if st.IsDir() {
		out.Mode = 0755 | syscall.S_IFDIR
	} else {
		out.Mode = 0644 | syscall.S_IFREG
	}
	if st.ReadOnly {
		out.Mode &^= 0222
	}
	out.Size = uint64(st.Size)
	out.Mtime = uint64(st.MTime.Unix())
	out.Ctime = uint64(st.CTime.Unix())
	out.Atime = out.Mtime
	out.Uid = f.uid
	out.Gid = f.gid
}

func modeOf(t models.FileType) uint32 {
	if t == models.TypeDirectory {
		return syscall.S_IFDIR
	}
	return syscall.S_IFREG
}

// Node is a file or directory in the mounted tree.
type Node struct {
	fs.Inode

	fsys *FS
	path string // virtual path /<namespace>/...
	dir  bool
}

var _ fs.InodeEmbedder = (*Node)(nil)
var _ fs.NodeGetattrer = (*Node)(nil)
var _ fs.NodeLookuper = (*Node)(nil)
var _ fs.NodeReaddirer = (*Node)(nil)
var _ fs.NodeOpener = (*Node)(nil)
var _ fs.NodeReader = (*Node)(nil)
var _ fs.NodeCreater = (*Node)(nil)
var _ fs.NodeMkdirer = (*Node)(nil)
var _ fs.NodeUnlinker = (*Node)(nil)
var _ fs.NodeRmdirer = (*Node)(nil)
var _ fs.NodeSetattrer = (*Node)(nil)
var _ fs.NodeRenamer = (*Node)(nil)

// Path returns the virtual path of the node.
func (n *Node) Path() string {
	return n.path
}

func (n *Node) child(name string, dir bool) *Node {
	return &Node{fsys: n.fsys, path: path.Join(n.path, name), dir: dir}
}

// Getattr fetches fresh attributes.
func (n *Node) Getattr(ctx context.Context, fh fs.FileHandle, out *gofuse.AttrOut) syscall.Errno {
	if h, ok := fh.(*FileHandle); ok && h.writable {
		// Report the buffered size while a write is in progress.
		st := models.FileStat{Type: models.TypeFile, Size: h.Size(), MTime: time.Now(), CTime: time.Now()}
		n.fsys.fillAttr(st, &out.Attr)
		return 0
	}

	st, err := n.fsys.provider.Stat(ctx, n.path)
	if err != nil {
		return n.fsys.fail("getattr", n.path, err)
	}
	n.fsys.fillAttr(st, &out.Attr)
	return 0
}

// Lookup resolves a child by name.
func (n *Node) Lookup(ctx context.Context, name string, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	childPath := path.Join(n.path, name)
	st, err := n.fsys.provider.Stat(ctx, childPath)
	if err != nil {
		return nil, n.fsys.fail("lookup", childPath, err)
	}

	n.fsys.fillAttr(st, &out.Attr)
	child := n.child(name, st.IsDir())
	return n.NewInode(ctx, child, fs.StableAttr{Mode: modeOf(st.Type)}), 0
}

// Readdir lists the directory.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.fsys.provider.ReadDirectory(ctx, n.path)
	if err != nil {
		return nil, n.fsys.fail("readdir", n.path, err)
	}

	out := make([]gofuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, gofuse.DirEntry{Name: e.Name, Mode: modeOf(e.Type)})
	}
	return fs.NewListDirStream(out), 0
}

// Open reads the whole file for reading, or prepares a write buffer.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if n.dir {
		return nil, 0, syscall.EISDIR
	}

	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return n.openForWrite(ctx, flags&syscall.O_TRUNC != 0)
	}

	data, err := n.fsys.provider.ReadFile(ctx, n.path)
	if err != nil {
		return nil, 0, n.fsys.fail("open", n.path, err)
	}
	return &FileHandle{node: n, data: data}, gofuse.FOPEN_DIRECT_IO, 0
}

func (n *Node) openForWrite(ctx context.Context, truncate bool) (fs.FileHandle, uint32, syscall.Errno) {
	h := &FileHandle{node: n, writable: true}
	if truncate {
		h.dirty = true
		return h, gofuse.FOPEN_DIRECT_IO, 0
	}

	data, err := n.fsys.provider.ReadFile(ctx, n.path)
	switch {
	case errors.Is(err, kestrafs.ErrNotFound):
	case err != nil:
		return nil, 0, n.fsys.fail("open", n.path, err)
	default:
		h.data = data
	}
	return h, gofuse.FOPEN_DIRECT_IO, 0
}

// Read serves reads from the handle's buffer.
func (n *Node) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (gofuse.ReadResult, syscall.Errno) {
	h, ok := fh.(*FileHandle)
	if !ok {
		return nil, syscall.EBADF
	}
	return h.Read(ctx, dest, off)
}

// Create makes a new file. It reaches the server on flush.
func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *gofuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	child := n.child(name, false)
	h := &FileHandle{node: child, writable: true, dirty: true}

	now := time.Now()
	n.fsys.fillAttr(models.FileStat{Type: models.TypeFile, MTime: now, CTime: now}, &out.Attr)
	inode := n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFREG})

	logging.Debug("file created", logging.String("path", child.path))
	return inode, h, gofuse.FOPEN_DIRECT_IO, 0
}

// Mkdir creates a directory on the server.
func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *gofuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child := n.child(name, true)
	if err := n.fsys.provider.CreateDirectory(ctx, child.path); err != nil {
		return nil, n.fsys.fail("mkdir", child.path, err)
	}

	now := time.Now()
	n.fsys.fillAttr(models.FileStat{Type: models.TypeDirectory, MTime: now, CTime: now}, &out.Attr)
	return n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
}

// Unlink deletes a file.
func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	p := path.Join(n.path, name)
	if err := n.fsys.provider.Delete(ctx, p); err != nil {
		return n.fsys.fail("unlink", p, err)
	}
	return 0
}

// Rmdir deletes a directory.
func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	p := path.Join(n.path, name)
	if err := n.fsys.provider.Delete(ctx, p); err != nil {
		return n.fsys.fail("rmdir", p, err)
	}
	return 0
}

// Setattr handles truncation of open write handles.
func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *gofuse.SetAttrIn, out *gofuse.AttrOut) syscall.Errno {
	if sz, ok := in.GetSize(); ok {
		if h, ok := f.(*FileHandle); ok && h.writable {
			h.Truncate(int64(sz))
		} else if sz == 0 {
			if err := n.fsys.provider.WriteFile(ctx, n.path, nil); err != nil {
				return n.fsys.fail("truncate", n.path, err)
			}
		}
	}
	return n.Getattr(ctx, f, out)
}

// Rename moves a child to newParent.
func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	target, ok := newParent.(*Node)
	if !ok {
		return syscall.EIO
	}

	from := path.Join(n.path, name)
	to := path.Join(target.path, newName)
	if err := n.fsys.provider.Rename(ctx, from, to); err != nil {
		return n.fsys.fail("rename", from, err)
	}
	return 0
}

// FileHandle buffers a whole file. Writes are sent on flush.
type FileHandle struct {
	node     *Node
	writable bool

	mu    sync.Mutex
	data  []byte
	dirty bool
}

var _ fs.FileHandle = (*FileHandle)(nil)
var _ fs.FileReader = (*FileHandle)(nil)
var _ fs.FileWriter = (*FileHandle)(nil)
var _ fs.FileFlusher = (*FileHandle)(nil)

// Size returns the buffered length.
func (h *FileHandle) Size() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.data))
}

// Read copies buffered data at off.
func (h *FileHandle) Read(ctx context.Context, dest []byte, off int64) (gofuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if off >= int64(len(h.data)) {
		return gofuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(h.data)) {
		end = int64(len(h.data))
	}
	return gofuse.ReadResultData(append([]byte(nil), h.data[off:end]...)), 0
}

// Write stores data at off in the buffer.
func (h *FileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	if !h.writable {
		return 0, syscall.EBADF
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	end := off + int64(len(data))
	if end > int64(len(h.data)) {
		grown := make([]byte, end)
		copy(grown, h.data)
		h.data = grown
	}
	copy(h.data[off:], data)
	h.dirty = true
	return uint32(len(data)), 0
}

// Truncate resizes the buffer.
func (h *FileHandle) Truncate(size int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if size <= int64(len(h.data)) {
		h.data = h.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, h.data)
		h.data = grown
	}
	h.dirty = true
}

// Flush uploads the buffer if it changed.
func (h *FileHandle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.writable || !h.dirty {
		return 0
	}

	p := h.node.path
	if err := h.node.fsys.provider.WriteFile(ctx, p, h.data); err != nil {
		return h.node.fsys.fail("write", p, err)
	}
	h.dirty = false
	return 0
}

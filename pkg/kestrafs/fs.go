// Package kestrafs maps filesystem verbs onto the Kestra namespace files and
// flows APIs.
//
// Paths are virtual paths of the form /<namespace>/<path>. Everything under
// /<namespace>/_flows is backed by flow definitions rather than files: flows
// are listed, read and saved through the flows API and can never be renamed
// or created as directories through generic file operations.
package kestrafs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/kestra-io/kestrafs/internal/logging"
	"github.com/kestra-io/kestrafs/internal/metrics"
	"github.com/kestra-io/kestrafs/pkg/client"
	"github.com/kestra-io/kestrafs/pkg/models"
	"github.com/kestra-io/kestrafs/pkg/protocol"
	"github.com/kestra-io/kestrafs/pkg/vpath"
)

var (
	// ErrNotFound is returned for missing paths and excluded folders.
	ErrNotFound = client.ErrNotFound

	// ErrPermissionDenied is returned for operations rejected before any network call.
	ErrPermissionDenied = errors.New("permission denied")
)

// flowsDirSize is the nominal size reported for the synthetic flows directory.
const flowsDirSize = 1

// Provider is the filesystem contract implemented by FS and consumed by hosts.
//
// Stat, ReadDirectory and ReadFile return an error matching ErrNotFound when
// the path does not exist. Mutating verbs return ErrPermissionDenied, before
// contacting the server, when the path is reserved.
type Provider interface {
	Stat(ctx context.Context, p string) (models.FileStat, error)
	ReadDirectory(ctx context.Context, p string) ([]models.DirEntry, error)
	ReadFile(ctx context.Context, p string) ([]byte, error)
	WriteFile(ctx context.Context, p string, content []byte) error
	Rename(ctx context.Context, from, to string) error
	Delete(ctx context.Context, p string) error
	CreateDirectory(ctx context.Context, p string) error
}

// FS is the Provider for one namespace. It holds no other state.
type FS struct {
	namespace string
	client    *client.Client
}

var _ Provider = (*FS)(nil)

// New returns the filesystem for namespace.
func New(namespace string, c *client.Client) *FS {
	return &FS{namespace: namespace, client: c}
}

// Namespace returns the namespace served by fs.
func (fs *FS) Namespace() string {
	return fs.namespace
}

// Root returns the virtual path of the namespace root.
func (fs *FS) Root() string {
	return "/" + fs.namespace
}

func notFound(p string) error {
	return fmt.Errorf("%s: %w", p, &client.NotFoundError{Target: p})
}

func denied(p, reason string) error {
	return fmt.Errorf("%s: %s: %w", p, reason, ErrPermissionDenied)
}

// Stat describes the entry at p.
func (fs *FS) Stat(ctx context.Context, p string) (st models.FileStat, err error) {
	defer func() { metrics.RecordFSOperation("stat", err) }()

	loc := vpath.Classify(p, fs.namespace)
	switch loc.Class {
	case vpath.ExcludedFolder:
		// Editors create these on their own; make sure none linger on the server.
		if _, derr := fs.client.FilesAPI(ctx, fs.namespace, loc.PathQuery(), client.Request{Method: http.MethodDelete}); derr != nil && !errors.Is(derr, ErrNotFound) {
			logging.Debug("delete excluded folder", logging.String("path", loc.Path), logging.Err(derr))
		}
		return models.FileStat{}, notFound(loc.Path)

	case vpath.FlowsDirectory:
		now := time.Now()
		return models.FileStat{
			Name:  vpath.FlowsDir,
			Type:  models.TypeDirectory,
			Size:  flowsDirSize,
			CTime: now,
			MTime: now,
		}, nil

	case vpath.FlowFile:
		source, err := fs.flowSource(ctx, loc.FlowID)
		if err != nil {
			return models.FileStat{}, fmt.Errorf("stat %s: %w", loc.Path, err)
		}
		now := time.Now()
		return models.FileStat{
			Name:  path.Base(loc.Path),
			Type:  models.TypeFile,
			Size:  int64(len(source)),
			CTime: now,
			MTime: now,
		}, nil
	}

	resp, err := fs.client.FilesAPI(ctx, fs.namespace, "/stats"+loc.PathQuery(), client.Request{})
	if err != nil {
		return models.FileStat{}, fmt.Errorf("stat %s: %w", loc.Path, err)
	}
	var attrs protocol.FileAttributes
	if err := resp.JSON(&attrs); err != nil {
		return models.FileStat{}, fmt.Errorf("decode stats for %s: %w", loc.Path, err)
	}
	return fileStat(attrs), nil
}

func fileStat(a protocol.FileAttributes) models.FileStat {
	st := models.FileStat{
		Name:     a.FileName,
		Type:     models.TypeFile,
		Size:     a.Size,
		CTime:    a.CreateTime(),
		MTime:    a.ModTime(),
		ReadOnly: a.ReadOnly,
	}
	if a.IsDir() {
		st.Type = models.TypeDirectory
	}
	return st
}

// ReadDirectory lists the entries of the directory at p. The namespace root
// always carries an extra _flows directory.
func (fs *FS) ReadDirectory(ctx context.Context, p string) (entries []models.DirEntry, err error) {
	defer func() { metrics.RecordFSOperation("readdir", err) }()

	loc := vpath.Classify(p, fs.namespace)
	switch loc.Class {
	case vpath.ExcludedFolder:
		return nil, notFound(loc.Path)
	case vpath.FlowsDirectory:
		flows, err := fs.listFlows(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", loc.Path, err)
		}
		entries = make([]models.DirEntry, 0, len(flows))
		for _, f := range flows {
			entries = append(entries, models.DirEntry{Name: f.ID + vpath.FlowExt, Type: models.TypeFile})
		}
		return entries, nil
	}

	resp, err := fs.client.FilesAPI(ctx, fs.namespace, "/directory"+loc.PathQuery(), client.Request{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", loc.Path, err)
	}
	var attrs []protocol.FileAttributes
	if err := resp.JSON(&attrs); err != nil {
		return nil, fmt.Errorf("decode listing for %s: %w", loc.Path, err)
	}

	entries = make([]models.DirEntry, 0, len(attrs)+1)
	for _, a := range attrs {
		entry := models.DirEntry{Name: a.FileName, Type: models.TypeFile}
		if a.IsDir() {
			entry.Type = models.TypeDirectory
		}
		entries = append(entries, entry)
	}
	if loc.IsRoot() {
		entries = append(entries, models.DirEntry{Name: vpath.FlowsDir, Type: models.TypeDirectory})
	}
	return entries, nil
}

// ReadFile returns the content at p. Flows are read as their YAML source.
func (fs *FS) ReadFile(ctx context.Context, p string) (data []byte, err error) {
	defer func() {
		metrics.RecordFSOperation("read", err)
		metrics.RecordBytesRead(len(data))
	}()

	loc := vpath.Classify(p, fs.namespace)
	switch loc.Class {
	case vpath.ExcludedFolder:
		return nil, notFound(loc.Path)
	case vpath.FlowFile:
		source, err := fs.flowSource(ctx, loc.FlowID)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", loc.Path, err)
		}
		return []byte(source), nil
	}

	resp, err := fs.client.FilesAPI(ctx, fs.namespace, loc.PathQuery(), client.Request{})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc.Path, err)
	}
	return resp.Body, nil
}

// WriteFile stores content at p. Writing a flow that does not exist yet
// creates it from the default template and ignores content.
func (fs *FS) WriteFile(ctx context.Context, p string, content []byte) (err error) {
	defer func() { metrics.RecordFSOperation("write", err) }()

	loc := vpath.Classify(p, fs.namespace)
	switch loc.Class {
	case vpath.ExcludedFolder:
		return denied(loc.Path, "excluded folder")
	case vpath.FlowsDirectory:
		return denied(loc.Path, "reserved directory name")
	case vpath.FlowFile:
		return fs.writeFlow(ctx, loc, content)
	}

	body, contentType, err := multipartBody(path.Base(loc.Path), content)
	if err != nil {
		return fmt.Errorf("encode %s: %w", loc.Path, err)
	}
	_, err = fs.client.FilesAPI(ctx, fs.namespace, loc.PathQuery(), client.Request{
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": {contentType}},
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", loc.Path, err)
	}

	metrics.RecordBytesWritten(len(content))
	logging.Info("file written", logging.String("path", loc.Path), logging.Int("size", len(content)))
	return nil
}

func multipartBody(name string, content []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("fileContent", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Rename moves a file or directory. Nothing in the flows subtree can be renamed,
// and excluded folders are invisible on either side.
func (fs *FS) Rename(ctx context.Context, from, to string) (err error) {
	defer func() { metrics.RecordFSOperation("rename", err) }()

	src := vpath.Classify(from, fs.namespace)
	dst := vpath.Classify(to, fs.namespace)
	if src.Class == vpath.ExcludedFolder {
		return notFound(src.Path)
	}
	if dst.Class == vpath.ExcludedFolder {
		return notFound(dst.Path)
	}
	if src.InFlowsSubtree() || dst.InFlowsSubtree() {
		return denied(src.Path, "no permissions")
	}

	query := "?from=" + url.QueryEscape(src.Relative) + "&to=" + url.QueryEscape(dst.Relative)
	if _, err := fs.client.FilesAPI(ctx, fs.namespace, query, client.Request{Method: http.MethodPut}); err != nil {
		return fmt.Errorf("rename %s to %s: %w", src.Path, dst.Path, err)
	}

	logging.Info("file renamed", logging.String("from", src.Path), logging.String("to", dst.Path))
	return nil
}

// Delete removes p. Deleting a flow also removes any file stored at the same path.
func (fs *FS) Delete(ctx context.Context, p string) (err error) {
	defer func() { metrics.RecordFSOperation("delete", err) }()

	loc := vpath.Classify(p, fs.namespace)
	switch loc.Class {
	case vpath.ExcludedFolder:
		return notFound(loc.Path)
	case vpath.FlowsDirectory:
		return denied(loc.Path, "reserved directory name")
	case vpath.FlowFile:
		return fs.deleteFlowFile(ctx, loc)
	}

	if _, err := fs.client.FilesAPI(ctx, fs.namespace, loc.PathQuery(), client.Request{Method: http.MethodDelete}); err != nil {
		return fmt.Errorf("delete %s: %w", loc.Path, err)
	}
	logging.Info("file deleted", logging.String("path", loc.Path))
	return nil
}

// deleteFlowFile removes both the flow and any file stored at its virtual path.
// Either target may be missing; only a path with neither is not found.
func (fs *FS) deleteFlowFile(ctx context.Context, loc vpath.Location) error {
	flowErr := fs.deleteFlow(ctx, loc.FlowID)
	if flowErr != nil && !errors.Is(flowErr, ErrNotFound) {
		return fmt.Errorf("delete %s: %w", loc.Path, flowErr)
	}
	_, fileErr := fs.client.FilesAPI(ctx, fs.namespace, loc.PathQuery(), client.Request{Method: http.MethodDelete})
	if fileErr != nil && !errors.Is(fileErr, ErrNotFound) {
		return fmt.Errorf("delete %s: %w", loc.Path, fileErr)
	}
	if flowErr != nil && fileErr != nil {
		return fmt.Errorf("delete %s: %w", loc.Path, flowErr)
	}

	if flowErr == nil {
		logging.Info("flow deleted", logging.String("namespace", fs.namespace), logging.String("flow", loc.FlowID))
	} else {
		logging.Info("file deleted", logging.String("path", loc.Path))
	}
	return nil
}

// CreateDirectory creates a directory at p.
func (fs *FS) CreateDirectory(ctx context.Context, p string) (err error) {
	defer func() { metrics.RecordFSOperation("mkdir", err) }()

	loc := vpath.Classify(p, fs.namespace)
	switch loc.Class {
	case vpath.FlowsDirectory, vpath.FlowFile:
		return denied(loc.Path, "reserved directory name")
	case vpath.ExcludedFolder:
		return denied(loc.Path, "excluded folder")
	}

	if _, err := fs.client.FilesAPI(ctx, fs.namespace, "/directory"+loc.PathQuery(), client.Request{Method: http.MethodPost}); err != nil {
		return fmt.Errorf("mkdir %s: %w", loc.Path, err)
	}
	logging.Info("directory created", logging.String("path", loc.Path))
	return nil
}

package kestrafs

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/kestra-io/kestrafs/pkg/client"
	"github.com/kestra-io/kestrafs/pkg/vpath"
)

//go:embed getting-started.md
var gettingStarted []byte

// GettingStartedName is the name the bundled guide is opened under.
const GettingStartedName = "getting-started.md"

// Opener shows a document to the user.
type Opener interface {
	Open(ctx context.Context, name string, content []byte) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, name string, content []byte) error

func (f OpenerFunc) Open(ctx context.Context, name string, content []byte) error {
	return f(ctx, name, content)
}

// GettingStarted returns the bundled guide.
func GettingStarted() []byte {
	return gettingStarted
}

// Start opens README.md from the namespace root, or the bundled guide when
// the namespace has none.
func (fs *FS) Start(ctx context.Context, o Opener) error {
	readme := vpath.Join(fs.namespace, "/README.md")
	data, err := fs.ReadFile(ctx, readme)
	switch {
	case errors.Is(err, ErrNotFound):
		return o.Open(ctx, GettingStartedName, gettingStarted)
	case err != nil:
		return err
	}
	return o.Open(ctx, readme, data)
}

// Search returns virtual paths matching query: namespace files found by the
// server plus flows whose id contains query.
func (fs *FS) Search(ctx context.Context, query string) ([]string, error) {
	resp, err := fs.client.FilesAPI(ctx, fs.namespace, "/search?q="+url.QueryEscape(query), client.Request{})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	var files []string
	if err := resp.JSON(&files); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}

	results := make([]string, 0, len(files))
	for _, f := range files {
		results = append(results, vpath.Join(fs.namespace, f))
	}

	flows, err := fs.listFlows(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	for _, f := range flows {
		if strings.Contains(f.ID, query) {
			results = append(results, vpath.FlowPath(fs.namespace, f.ID))
		}
	}
	return results, nil
}

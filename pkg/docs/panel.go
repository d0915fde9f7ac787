// Package docs shows plugin documentation for the task under the cursor.
package docs

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/kestra-io/kestrafs/internal/logging"
	"github.com/kestra-io/kestrafs/pkg/client"
	"github.com/kestra-io/kestrafs/pkg/protocol"
)

//go:embed task_home.md
var taskHome string

//go:embed basics.md
var basics string

// View is the documentation tab being shown.
type View string

const (
	ViewTasks  View = "tasks"
	ViewBasics View = "basics"
)

// Renderer displays markdown.
type Renderer interface {
	Render(markdown string) error
}

// WriterRenderer writes markdown as-is to W.
type WriterRenderer struct {
	W io.Writer
}

func (r WriterRenderer) Render(markdown string) error {
	_, err := io.WriteString(r.W, markdown)
	return err
}

// Panel tracks the current view and the last documented task type.
type Panel struct {
	client   *client.Client
	renderer Renderer

	mu         sync.Mutex
	view       View
	latestType string
}

// NewPanel returns a panel showing the tasks view.
func NewPanel(c *client.Client, r Renderer) *Panel {
	return &Panel{client: c, renderer: r, view: ViewTasks}
}

// View returns the active view.
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// LatestType returns the last task type rendered, if any.
func (p *Panel) LatestType() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latestType
}

// Show renders the task home page.
func (p *Panel) Show() error {
	return p.renderer.Render(taskHome)
}

// OnMessage switches view. Switching to tasks forgets the last type.
func (p *Panel) OnMessage(view View) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch view {
	case ViewBasics:
		p.view = view
		return p.renderer.Render(basics)
	case ViewTasks:
		p.view = view
		p.latestType = ""
		return p.renderer.Render(taskHome)
	default:
		return fmt.Errorf("unknown view %q", view)
	}
}

// OnSelectionChange renders the documentation of the task at the cursor
// when it differs from the last one shown.
func (p *Panel) OnSelectionChange(ctx context.Context, source string, line, col int) error {
	taskType := TaskType(source, line, col)
	if taskType == "" || taskType == p.LatestType() {
		return nil
	}
	if p.client.APIURL() == "" {
		return client.ErrNoServerURL
	}

	resp, err := p.client.Call(ctx, &client.Request{
		URL:          p.client.PluginURL(taskType),
		IgnoreCodes:  []int{http.StatusNotFound},
		ErrorContext: "Error while loading Kestra's task definition:",
	})
	if err != nil {
		return fmt.Errorf("load documentation for %s: %w", taskType, err)
	}
	if resp.StatusCode != http.StatusOK {
		logging.Debug("no documentation for task type", logging.String("type", taskType), logging.Int("status", resp.StatusCode))
		return nil
	}

	var doc protocol.PluginDocumentation
	if err := resp.JSON(&doc); err != nil {
		return fmt.Errorf("decode documentation for %s: %w", taskType, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.view != ViewTasks {
		return nil
	}
	p.latestType = taskType
	return p.renderer.Render(doc.Markdown)
}

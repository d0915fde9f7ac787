// Package schema downloads the Kestra flow JSON schema and keeps it in session state.
package schema

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kestra-io/kestrafs/internal/logging"
	"github.com/kestra-io/kestrafs/pkg/client"
	"github.com/kestra-io/kestrafs/pkg/prompt"
	"github.com/kestra-io/kestrafs/pkg/store"
	"github.com/kestra-io/kestrafs/pkg/vpath"
)

const urlPrompt = "Kestra Webserver URL"

// Settings is where the server URL is read from and persisted to.
type Settings interface {
	ServerURL() string
	SetAPIURL(url string) error
}

// Fetcher downloads the flow schema.
type Fetcher struct {
	client   *client.Client
	state    store.Store
	settings Settings
	prompter prompt.Prompter
	notifier prompt.Notifier
	locked   bool
}

// Config holds fetcher dependencies. Locked hosts never prompt for the server URL.
type Config struct {
	Client   *client.Client
	State    store.Store
	Settings Settings
	Prompter prompt.Prompter
	Notifier prompt.Notifier
	Locked   bool
}

// New creates a fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Prompter == nil {
		cfg.Prompter = prompt.NoInput{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = prompt.Discard{}
	}
	return &Fetcher{
		client:   cfg.Client,
		state:    cfg.State,
		settings: cfg.Settings,
		prompter: cfg.Prompter,
		notifier: cfg.Notifier,
		locked:   cfg.Locked,
	}
}

// ResolveURL returns the server URL, asking the user when none is configured
// or reenter is set. A newly entered URL is persisted.
func (f *Fetcher) ResolveURL(ctx context.Context, reenter bool) (string, error) {
	current := f.settings.ServerURL()
	if f.locked || (current != "" && !reenter) {
		if current == "" {
			f.notifier.Error("Cannot get information without a proper Kestra URL.")
			return "", client.ErrNoServerURL
		}
		return current, nil
	}

	def := current
	if def == "" {
		def = client.PublicAPIURL
	}
	entered, err := f.prompter.Input(ctx, prompt.Options{Prompt: urlPrompt, Value: def})
	if errors.Is(err, prompt.ErrCancelled) || (err == nil && strings.TrimSpace(entered) == "") {
		f.notifier.Error("Cannot get information without a proper Kestra URL.")
		return "", client.ErrNoServerURL
	}
	if err != nil {
		return "", err
	}

	entered = strings.TrimSpace(entered)
	if entered != current {
		if err := f.settings.SetAPIURL(entered); err != nil {
			return "", fmt.Errorf("save server url: %w", err)
		}
		logging.Info("server url updated", logging.String("url", entered))
	}
	return entered, nil
}

// Download fetches the flow schema and stores it under store.SchemaKey.
func (f *Fetcher) Download(ctx context.Context, reenter bool) error {
	serverURL, err := f.ResolveURL(ctx, reenter)
	if err != nil {
		return err
	}
	f.client.SetBaseURL(serverURL)

	resp, err := f.client.Call(ctx, &client.Request{
		URL:          f.client.SchemaURL(),
		ErrorContext: "Error while downloading Kestra's flow schema:",
	})
	if err != nil {
		return fmt.Errorf("download schema: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download schema: unexpected status %d", resp.StatusCode)
	}

	if err := f.state.Set(store.SchemaKey, resp.Text()); err != nil {
		return fmt.Errorf("store schema: %w", err)
	}
	f.notifier.Info("Flow schema successfully downloaded. You can start using autocompletion.")
	return nil
}

// AutoDownload makes a single unauthenticated attempt to fetch the schema
// from the configured server. Failures are logged and otherwise ignored.
func (f *Fetcher) AutoDownload(ctx context.Context) error {
	serverURL := f.settings.ServerURL()
	if serverURL == "" {
		return nil
	}

	resp, err := f.client.Probe(ctx, client.APIURL(serverURL)+"/plugins/schemas/flow")
	if err != nil {
		logging.Debug("schema auto-download failed", logging.Err(err))
		return nil
	}
	if !resp.OK() {
		logging.Debug("schema auto-download skipped", logging.Int("status", resp.StatusCode))
		return nil
	}

	if err := f.state.Set(store.SchemaKey, resp.Text()); err != nil {
		return fmt.Errorf("store schema: %w", err)
	}
	f.notifier.Info("Auto-downloaded flow schema successfully. You can start using autocompletion for your flows.")
	return nil
}

// Cached returns the stored schema, or "" if none was downloaded.
func (f *Fetcher) Cached() (string, error) {
	return f.state.Get(store.SchemaKey)
}

// AppliesTo reports whether the flow schema should validate resource. In
// locked hosts only flows are validated.
func AppliesTo(resource string, locked bool) bool {
	return !locked || strings.Contains(resource, "/"+vpath.FlowsDir+"/")
}

package schema

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kestra-io/kestrafs/pkg/client"
	"github.com/kestra-io/kestrafs/pkg/prompt"
	"github.com/kestra-io/kestrafs/pkg/store"
)

const testSchema = `{"$schema":"http://json-schema.org/draft-07/schema#","type":"object"}`

type memSettings struct {
	url   string
	saves int
}

func (s *memSettings) ServerURL() string { return s.url }

func (s *memSettings) SetAPIURL(url string) error {
	s.url = url
	s.saves++
	return nil
}

func schemaServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/plugins/schemas/flow" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(testSchema))
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newFetcher(settings Settings, p *prompt.Scripted, locked bool) (*Fetcher, *store.MemoryStore) {
	state := store.NewMemoryStore()
	c := client.New(client.Config{Prompter: p, Notifier: p})
	return New(Config{
		Client:   c,
		State:    state,
		Settings: settings,
		Prompter: p,
		Notifier: p,
		Locked:   locked,
	}), state
}

func TestDownload_PromptsForURL(t *testing.T) {
	ts := schemaServer(t, http.StatusOK)
	settings := &memSettings{}
	p := prompt.NewScripted(prompt.Answer{Value: ts.URL})
	f, state := newFetcher(settings, p, false)

	if err := f.Download(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Asked) != 1 || p.Asked[0].Value != client.PublicAPIURL {
		t.Errorf("expected URL prompt defaulting to the public API, got %+v", p.Asked)
	}
	if settings.url != ts.URL || settings.saves != 1 {
		t.Errorf("expected URL to be persisted, got %q (%d saves)", settings.url, settings.saves)
	}
	if got, _ := state.Get(store.SchemaKey); got != testSchema {
		t.Errorf("unexpected stored schema %q", got)
	}
	cached, err := f.Cached()
	if err != nil || cached != testSchema {
		t.Errorf("Cached() = %q, %v", cached, err)
	}
	if len(p.Infos) != 1 {
		t.Errorf("expected success notification, got %v", p.Infos)
	}
}

func TestDownload_UsesConfiguredURL(t *testing.T) {
	ts := schemaServer(t, http.StatusOK)
	settings := &memSettings{url: ts.URL + "/"}
	p := prompt.NewScripted()
	f, _ := newFetcher(settings, p, false)

	if err := f.Download(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Asked) != 0 || settings.saves != 0 {
		t.Errorf("expected no prompt and no save, got %d prompts, %d saves", len(p.Asked), settings.saves)
	}
}

func TestDownload_Reenter(t *testing.T) {
	ts := schemaServer(t, http.StatusOK)
	settings := &memSettings{url: "http://old.example"}
	p := prompt.NewScripted(prompt.Answer{Value: ts.URL})
	f, _ := newFetcher(settings, p, false)

	if err := f.Download(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Asked[0].Value != "http://old.example" {
		t.Errorf("expected prompt prefilled with current URL, got %q", p.Asked[0].Value)
	}
	if settings.url != ts.URL {
		t.Errorf("expected new URL, got %q", settings.url)
	}
}

func TestDownload_Cancelled(t *testing.T) {
	p := prompt.NewScripted(prompt.Answer{Cancel: true})
	f, state := newFetcher(&memSettings{}, p, false)

	err := f.Download(context.Background(), false)
	if !errors.Is(err, client.ErrNoServerURL) {
		t.Fatalf("expected ErrNoServerURL, got %v", err)
	}
	if len(p.Errors) != 1 {
		t.Errorf("expected error notification, got %v", p.Errors)
	}
	if got, _ := state.Get(store.SchemaKey); got != "" {
		t.Errorf("expected no schema, got %q", got)
	}
}

func TestDownload_LockedWithoutURL(t *testing.T) {
	p := prompt.NewScripted()
	f, _ := newFetcher(&memSettings{}, p, true)

	if err := f.Download(context.Background(), true); !errors.Is(err, client.ErrNoServerURL) {
		t.Fatalf("expected ErrNoServerURL, got %v", err)
	}
	if len(p.Asked) != 0 {
		t.Error("locked hosts must not prompt")
	}
}

func TestDownload_ServerError(t *testing.T) {
	ts := schemaServer(t, http.StatusInternalServerError)
	p := prompt.NewScripted()
	f, state := newFetcher(&memSettings{url: ts.URL}, p, false)

	err := f.Download(context.Background(), false)
	if _, ok := client.AsStatus(err); !ok {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if got, _ := state.Get(store.SchemaKey); got != "" {
		t.Errorf("expected no schema stored, got %q", got)
	}
	if len(p.Infos) != 0 {
		t.Errorf("unexpected success notification %v", p.Infos)
	}
}

func TestAutoDownload(t *testing.T) {
	ts := schemaServer(t, http.StatusOK)
	p := prompt.NewScripted()
	f, state := newFetcher(&memSettings{url: ts.URL}, p, true)

	if err := f.AutoDownload(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := state.Get(store.SchemaKey); got != testSchema {
		t.Errorf("unexpected stored schema %q", got)
	}

	secured := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer secured.Close()
	p2 := prompt.NewScripted()
	f2, state2 := newFetcher(&memSettings{url: secured.URL}, p2, true)
	if err := f2.AutoDownload(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := state2.Get(store.SchemaKey); got != "" || len(p2.Asked) != 0 || len(p2.Errors) != 0 {
		t.Errorf("auto-download must stay silent on failure")
	}
}

func TestAppliesTo(t *testing.T) {
	tests := []struct {
		resource string
		locked   bool
		want     bool
	}{
		{"/company.team/_flows/hello.yml", false, true},
		{"/company.team/scripts/a.yml", false, true},
		{"/company.team/_flows/hello.yml", true, true},
		{"/company.team/scripts/a.yml", true, false},
	}
	for _, tt := range tests {
		if got := AppliesTo(tt.resource, tt.locked); got != tt.want {
			t.Errorf("AppliesTo(%q, %v) = %v, want %v", tt.resource, tt.locked, got, tt.want)
		}
	}
}

package kestrafs

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kestra-io/kestrafs/pkg/client"
	"github.com/kestra-io/kestrafs/pkg/prompt"
	"github.com/kestra-io/kestrafs/pkg/protocol"
)

const testNamespace = "company.team"

type recordedRequest struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Body        string
}

// fakeKestra is an in-memory stand-in for the namespace files and flows APIs.
type fakeKestra struct {
	mu       sync.Mutex
	files    map[string]string
	dirs     map[string]bool
	flows    []protocol.Flow
	requests []recordedRequest

	// rejectFlows makes flow create and update fail with this validation message.
	rejectFlows string
}

func newFakeKestra() *fakeKestra {
	return &fakeKestra{
		files: map[string]string{},
		dirs:  map[string]bool{"/": true},
	}
}

func newTestFS(t *testing.T, fake *fakeKestra) (*FS, *prompt.Scripted) {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	p := prompt.NewScripted()
	c := client.New(client.Config{BaseURL: ts.URL, Prompter: p, Notifier: p})
	return New(testNamespace, c), p
}

func (f *fakeKestra) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeKestra) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}

func (f *fakeKestra) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	f.requests = append(f.requests, recordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.Query(),
		ContentType: r.Header.Get("Content-Type"),
		Body:        string(body),
	})

	filesBase := "/api/v1/namespaces/" + testNamespace + "/files"
	flowsBase := "/api/v1/flows"

	switch p := r.URL.Path; {
	case p == filesBase+"/stats":
		f.stats(w, r.URL.Query().Get("path"))
	case p == filesBase+"/directory":
		f.directory(w, r)
	case p == filesBase+"/search":
		f.search(w, r.URL.Query().Get("q"))
	case p == filesBase:
		f.file(w, r)
	case p == flowsBase && r.Method == http.MethodPost:
		f.createFlow(w, body)
	case p == flowsBase+"/"+testNamespace:
		writeJSON(w, http.StatusOK, f.flows)
	case strings.HasPrefix(p, flowsBase+"/"+testNamespace+"/"):
		f.flow(w, r, strings.TrimPrefix(p, flowsBase+"/"+testNamespace+"/"), body)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeKestra) stats(w http.ResponseWriter, p string) {
	switch {
	case f.dirs[p]:
		writeJSON(w, http.StatusOK, protocol.FileAttributes{FileName: path.Base(p), Type: protocol.TypeDirectory, CreationTime: 1000, LastModifiedTime: 2000})
	case f.hasFile(p):
		writeJSON(w, http.StatusOK, protocol.FileAttributes{FileName: path.Base(p), Type: protocol.TypeFile, Size: int64(len(f.files[p])), CreationTime: 1000, LastModifiedTime: 2000})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeKestra) hasFile(p string) bool {
	_, ok := f.files[p]
	return ok
}

func (f *fakeKestra) directory(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if r.Method == http.MethodPost {
		f.dirs[p] = true
		w.WriteHeader(http.StatusOK)
		return
	}
	if !f.dirs[p] {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var list []protocol.FileAttributes
	for d := range f.dirs {
		if d != "/" && path.Dir(d) == p {
			list = append(list, protocol.FileAttributes{FileName: path.Base(d), Type: protocol.TypeDirectory})
		}
	}
	for name, content := range f.files {
		if path.Dir(name) == p {
			list = append(list, protocol.FileAttributes{FileName: path.Base(name), Type: protocol.TypeFile, Size: int64(len(content))})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].FileName < list[j].FileName })
	writeJSON(w, http.StatusOK, list)
}

func (f *fakeKestra) search(w http.ResponseWriter, q string) {
	results := []string{}
	for name := range f.files {
		if strings.Contains(name, q) {
			results = append(results, name)
		}
	}
	sort.Strings(results)
	writeJSON(w, http.StatusOK, results)
}

func (f *fakeKestra) file(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := q.Get("path")

	switch r.Method {
	case http.MethodGet:
		if !f.hasFile(p) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, f.files[p])
	case http.MethodPost:
		file, _, err := r.FormFile("fileContent")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Message: err.Error()})
			return
		}
		data, _ := io.ReadAll(file)
		f.files[p] = string(data)
	case http.MethodPut:
		from, to := q.Get("from"), q.Get("to")
		if !f.hasFile(from) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.files[to] = f.files[from]
		delete(f.files, from)
	case http.MethodDelete:
		switch {
		case f.hasFile(p):
			delete(f.files, p)
		case f.dirs[p]:
			delete(f.dirs, p)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func (f *fakeKestra) flowIndex(id string) int {
	for i, fl := range f.flows {
		if fl.ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeKestra) createFlow(w http.ResponseWriter, body []byte) {
	if f.rejectFlows != "" {
		writeJSON(w, http.StatusUnprocessableEntity, protocol.ErrorResponse{Message: f.rejectFlows})
		return
	}
	var def struct {
		ID        string `yaml:"id"`
		Namespace string `yaml:"namespace"`
	}
	if err := yaml.Unmarshal(body, &def); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, protocol.ErrorResponse{Message: err.Error()})
		return
	}
	f.flows = append(f.flows, protocol.Flow{ID: def.ID, Namespace: def.Namespace, Source: string(body)})
	writeJSON(w, http.StatusOK, f.flows[len(f.flows)-1])
}

func (f *fakeKestra) flow(w http.ResponseWriter, r *http.Request, id string, body []byte) {
	i := f.flowIndex(id)
	if i < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		fl := f.flows[i]
		if r.URL.Query().Get("source") != "true" {
			fl.Source = ""
		}
		writeJSON(w, http.StatusOK, fl)
	case http.MethodPut:
		if f.rejectFlows != "" {
			writeJSON(w, http.StatusUnprocessableEntity, protocol.ErrorResponse{Message: f.rejectFlows})
			return
		}
		f.flows[i].Source = string(body)
		writeJSON(w, http.StatusOK, f.flows[i])
	case http.MethodDelete:
		f.flows = append(f.flows[:i], f.flows[i+1:]...)
		w.WriteHeader(http.StatusNoContent)
	}
}

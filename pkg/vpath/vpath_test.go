package vpath

import "testing"

func TestClassify(t *testing.T) {
	const ns = "company.team"

	tests := []struct {
		name     string
		path     string
		class    Class
		relative string
		flowID   string
	}{
		{name: "namespace root", path: "/company.team", class: OrdinaryFile, relative: "/"},
		{name: "root with slash", path: "/company.team/", class: OrdinaryFile, relative: "/"},
		{name: "ordinary file", path: "/company.team/scripts/etl.py", class: OrdinaryFile, relative: "/scripts/etl.py"},
		{name: "git folder", path: "/company.team/.git", class: ExcludedFolder, relative: "/.git"},
		{name: "inside git folder", path: "/company.team/.git/HEAD", class: ExcludedFolder, relative: "/.git/HEAD"},
		{name: "vscode settings", path: "/company.team/sub/.vscode/settings.json", class: ExcludedFolder, relative: "/sub/.vscode/settings.json"},
		{name: "excluded wins over flows", path: "/company.team/_flows/.git", class: ExcludedFolder, relative: "/_flows/.git"},
		{name: "similar name is not excluded", path: "/company.team/.github/workflows", class: OrdinaryFile, relative: "/.github/workflows"},
		{name: "flows directory", path: "/company.team/_flows", class: FlowsDirectory, relative: "/_flows"},
		{name: "flows directory slash", path: "/company.team/_flows/", class: FlowsDirectory, relative: "/_flows"},
		{name: "flow file", path: "/company.team/_flows/hello.yml", class: FlowFile, relative: "/_flows/hello.yml", flowID: "hello"},
		{name: "flow without extension", path: "/company.team/_flows/hello", class: FlowFile, relative: "/_flows/hello", flowID: "hello"},
		{name: "flow with dotted id", path: "/company.team/_flows/my.flow.yaml", class: FlowFile, relative: "/_flows/my.flow.yaml", flowID: "my.flow"},
		{name: "flows prefix lookalike", path: "/company.team/_flowsx/a.yml", class: OrdinaryFile, relative: "/_flowsx/a.yml"},
		{name: "nested _flows is ordinary", path: "/company.team/sub/_flows/a.yml", class: OrdinaryFile, relative: "/sub/_flows/a.yml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := Classify(tt.path, ns)
			if loc.Class != tt.class {
				t.Errorf("Classify(%q) class = %v, want %v", tt.path, loc.Class, tt.class)
			}
			if loc.Relative != tt.relative {
				t.Errorf("Classify(%q) relative = %q, want %q", tt.path, loc.Relative, tt.relative)
			}
			if loc.FlowID != tt.flowID {
				t.Errorf("Classify(%q) flowID = %q, want %q", tt.path, loc.FlowID, tt.flowID)
			}
		})
	}
}

func TestPathQuery(t *testing.T) {
	loc := Classify("/ns/dir with space/a&b.txt", "ns")
	want := "?path=%2Fdir+with+space%2Fa%26b.txt"
	if got := loc.PathQuery(); got != want {
		t.Errorf("PathQuery() = %q, want %q", got, want)
	}
	if !Classify("/ns", "ns").IsRoot() {
		t.Error("namespace path should be the root")
	}
}

func TestFlowPathRoundTrip(t *testing.T) {
	p := FlowPath("ns", "hello")
	if p != "/ns/_flows/hello.yml" {
		t.Fatalf("FlowPath = %q", p)
	}
	loc := Classify(p, "ns")
	if loc.Class != FlowFile || loc.FlowID != "hello" {
		t.Errorf("unexpected location %+v", loc)
	}
	if !loc.InFlowsSubtree() || !Classify(FlowsPath("ns"), "ns").InFlowsSubtree() {
		t.Error("flows paths should be in the flows subtree")
	}
}

func TestJoin(t *testing.T) {
	if got := Join("ns", "/a/b"); got != "/ns/a/b" {
		t.Errorf("Join = %q", got)
	}
	if got := Join("ns", "/"); got != "/ns" {
		t.Errorf("Join root = %q", got)
	}
}

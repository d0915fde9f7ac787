// Package vpath translates virtual paths of the form /<namespace>/<path...>
// into the locations the Kestra API understands.
package vpath

import (
	"net/url"
	"path"
	"strings"
)

// FlowsDir is the reserved first segment under which flows are presented as files.
const FlowsDir = "_flows"

// FlowExt is the extension given to flow pseudo-files.
const FlowExt = ".yml"

// ExcludedFolders are editor and VCS metadata folders that must never reach the server.
var ExcludedFolders = []string{".git", ".vscode", ".idea"}

// Class is the category a virtual path falls into.
type Class int

const (
	OrdinaryFile Class = iota
	ExcludedFolder
	FlowsDirectory
	FlowFile
)

func (c Class) String() string {
	switch c {
	case ExcludedFolder:
		return "excluded"
	case FlowsDirectory:
		return "flows-directory"
	case FlowFile:
		return "flow"
	default:
		return "file"
	}
}

// Location is a classified virtual path.
type Location struct {
	Class Class
	// Path is the cleaned virtual path, always starting with "/<namespace>".
	Path string
	// Relative is the namespace-relative path ("/" for the namespace root).
	Relative string
	// FlowID is set for FlowFile.
	FlowID string
}

// Classify categorises p relative to namespace. Rules apply in priority order:
// excluded folders, the flows directory, flow files, then ordinary files.
func Classify(p, namespace string) Location {
	clean := Clean(p)
	loc := Location{Class: OrdinaryFile, Path: clean, Relative: Relative(clean, namespace)}

	if containsExcluded(clean) {
		loc.Class = ExcludedFolder
		return loc
	}

	flows := FlowsPath(namespace)
	switch {
	case clean == flows:
		loc.Class = FlowsDirectory
	case strings.HasPrefix(clean, flows+"/"):
		loc.Class = FlowFile
		loc.FlowID = FlowID(clean)
	}
	return loc
}

// IsRoot reports whether the location is the namespace root.
func (l Location) IsRoot() bool {
	return l.Relative == "/"
}

// InFlowsSubtree reports whether the location is the flows directory or a flow.
func (l Location) InFlowsSubtree() bool {
	return l.Class == FlowsDirectory || l.Class == FlowFile
}

// PathQuery returns the "?path=" suffix for the files API.
func (l Location) PathQuery() string {
	return "?path=" + url.QueryEscape(l.Relative)
}

// Clean normalises a virtual path: leading slash, no trailing slash, no dot segments.
func Clean(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// Relative returns everything after "/<namespace>", rooted at "/".
func Relative(p, namespace string) string {
	prefix := "/" + namespace
	if p == prefix {
		return "/"
	}
	if strings.HasPrefix(p, prefix+"/") {
		return p[len(prefix):]
	}
	return p
}

// Join builds the virtual path of a namespace-relative path.
func Join(namespace, rel string) string {
	return Clean("/" + namespace + "/" + strings.TrimPrefix(rel, "/"))
}

// FlowsPath returns the virtual path of the flows directory.
func FlowsPath(namespace string) string {
	return "/" + namespace + "/" + FlowsDir
}

// FlowPath returns the virtual path of a flow pseudo-file.
func FlowPath(namespace, flowID string) string {
	return FlowsPath(namespace) + "/" + flowID + FlowExt
}

// FlowID returns the last path segment with any extension stripped.
func FlowID(p string) string {
	base := path.Base(p)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func containsExcluded(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		for _, ex := range ExcludedFolders {
			if seg == ex {
				return true
			}
		}
	}
	return false
}

// IsFlowsSubtree reports whether p is the flows directory of namespace or a flow in it.
func IsFlowsSubtree(p, namespace string) bool {
	return Classify(p, namespace).InFlowsSubtree()
}

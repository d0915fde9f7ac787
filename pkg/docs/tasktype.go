package docs

import (
	"gopkg.in/yaml.v3"
)

// flowSections are the top-level keys that hold task definitions.
var flowSections = map[string]bool{"tasks": true, "triggers": true, "errors": true}

type typedMapping struct {
	taskType string
	line     int // 1-based
	col      int // 0-based
}

// TaskType returns the type of the task under the cursor, or "" if there is
// none. line is 1-based and col 0-based. Only flow documents (with tasks,
// triggers or errors at the top level) are considered.
//
// The result is the type of the last mapping, in document order, with a type
// key that starts at or before the cursor.
func TaskType(source string, line, col int) string {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(source), &root); err != nil || len(root.Content) == 0 {
		return ""
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode || !hasFlowSection(doc) {
		return ""
	}

	var found string
	for _, m := range collectTypes(doc, nil) {
		if m.line < line || (m.line == line && m.col <= col) {
			found = m.taskType
		}
	}
	return found
}

func hasFlowSection(doc *yaml.Node) bool {
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if flowSections[doc.Content[i].Value] {
			return true
		}
	}
	return false
}

// collectTypes walks n in document order and appends every mapping that has a
// scalar type key.
func collectTypes(n *yaml.Node, acc []typedMapping) []typedMapping {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Value == "type" && v.Kind == yaml.ScalarNode && v.Value != "" {
				acc = append(acc, typedMapping{taskType: v.Value, line: n.Line, col: n.Column - 1})
				break
			}
		}
	}
	for _, c := range n.Content {
		acc = collectTypes(c, acc)
	}
	return acc
}

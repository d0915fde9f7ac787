// Package protocol defines the Kestra API request/response types.
package protocol

import "time"

// File types reported by the namespace files API.
const (
	TypeFile      = "File"
	TypeDirectory = "Directory"
)

// FileAttributes is returned by GET /namespaces/{ns}/files/stats and, as a
// list, by GET /namespaces/{ns}/files/directory.
type FileAttributes struct {
	FileName         string `json:"fileName"`
	LastModifiedTime int64  `json:"lastModifiedTime"` // epoch millis
	CreationTime     int64  `json:"creationTime"`     // epoch millis
	Type             string `json:"type"`             // "File" or "Directory"
	Size             int64  `json:"size"`
	ReadOnly         bool   `json:"readOnly"`
}

// IsDir reports whether the attributes describe a directory.
func (a FileAttributes) IsDir() bool {
	return a.Type == TypeDirectory
}

// ModTime returns LastModifiedTime as a time.Time.
func (a FileAttributes) ModTime() time.Time {
	return time.UnixMilli(a.LastModifiedTime)
}

// CreateTime returns CreationTime as a time.Time.
func (a FileAttributes) CreateTime() time.Time {
	return time.UnixMilli(a.CreationTime)
}

// Flow is the subset of a flow definition used by the client. GET
// /flows/{ns}/{id}?source=true fills Source with the raw YAML.
type Flow struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Revision  int    `json:"revision,omitempty"`
	Disabled  bool   `json:"disabled,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
	Source    string `json:"source,omitempty"`
}

// PluginDocumentation is returned by GET /plugins/{type}.
type PluginDocumentation struct {
	Markdown string `json:"markdown"`
}

// ErrorResponse is the JSON body the server returns on errors. Validation
// failures (e.g. invalid flow YAML) carry the human-readable reason in Message.
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Text returns the most descriptive field that is set.
func (e ErrorResponse) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

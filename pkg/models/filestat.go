// Package models contains the descriptors the virtual filesystem hands to its hosts.
package models

import "time"

// FileType is the kind of a virtual filesystem entry.
type FileType int

const (
	TypeFile FileType = iota
	TypeDirectory
)

func (t FileType) String() string {
	if t == TypeDirectory {
		return "directory"
	}
	return "file"
}

// FileStat describes a file or directory in the virtual filesystem.
type FileStat struct {
	Name     string    `json:"name"`
	Type     FileType  `json:"type"`
	Size     int64     `json:"size"`
	CTime    time.Time `json:"ctime"`
	MTime    time.Time `json:"mtime"`
	ReadOnly bool      `json:"read_only,omitempty"`
}

// IsDir reports whether the entry is a directory.
func (s FileStat) IsDir() bool {
	return s.Type == TypeDirectory
}

// DirEntry is one entry returned by a directory listing.
type DirEntry struct {
	Name string   `json:"name"`
	Type FileType `json:"type"`
}

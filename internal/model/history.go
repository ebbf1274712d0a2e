package model

import "time"

// LoadStatus is the outcome of a load attempt.
type LoadStatus string

const (
	LoadStatusOK       LoadStatus = "ok"
	LoadStatusNotFound LoadStatus = "not_found"
	LoadStatusFailed   LoadStatus = "load_failed"
)

// LoadEvent records one attempt to read the source file.
type LoadEvent struct {
	ID        string     `json:"id" yaml:"id"`
	Source    string     `json:"source" yaml:"source"`
	Signature string     `json:"signature,omitempty" yaml:"signature,omitempty"`
	Status    LoadStatus `json:"status" yaml:"status"`
	Rows      int        `json:"rows" yaml:"rows"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
}

// ExportEvent records one export of a filtered view.
type ExportEvent struct {
	ID        string    `json:"id" yaml:"id"`
	FileName  string    `json:"file_name" yaml:"file_name"`
	Format    string    `json:"format" yaml:"format"`
	Status    string    `json:"status_filter" yaml:"status_filter"`
	Year      string    `json:"year_filter" yaml:"year_filter"`
	Owner     string    `json:"owner_filter" yaml:"owner_filter"`
	Rows      int       `json:"rows" yaml:"rows"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

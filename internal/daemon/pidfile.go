// Package daemon tracks a background auditwise server through a state file.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Record describes a running server.
type Record struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// URL is the base URL of the recorded server.
func (r Record) URL() string {
	addr := r.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// PIDFile stores the Record of the background server.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile manager for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process serving on addr.
func (p *PIDFile) Write(addr string) error {
	return p.WriteRecord(Record{PID: os.Getpid(), Addr: addr, StartedAt: time.Now().UTC()})
}

// WriteRecord writes r to the file.
func (p *PIDFile) WriteRecord(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(p.Path, append(data, '\n'), 0o644)
}

// Read loads the record. A file holding only a bare PID is accepted.
func (p *PIDFile) Read() (Record, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Record{}, err
	}
	trimmed := strings.TrimSpace(string(data))

	if pid, err := strconv.Atoi(trimmed); err == nil {
		return Record{PID: pid}, nil
	}

	var r Record
	if err := json.Unmarshal([]byte(trimmed), &r); err != nil || r.PID <= 0 {
		return Record{}, fmt.Errorf("invalid PID file content: %q", trimmed)
	}
	return r, nil
}

// Remove deletes the file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}

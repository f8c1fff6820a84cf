package results

import (
	"fmt"

	"github.com/jonathan/report-composer/internal/types"
)

// Entry is the editing state of one enrolled service.
type Entry struct {
	SelectedFile     *Blob
	Note             string
	Status           types.Status
	IncludeInSummary bool
}

// ServiceEntry pairs an entry with its service, as returned by Entries.
type ServiceEntry struct {
	Service types.ServiceRef
	Entry
}

// Tracker holds the editing state of a single candidate.
// It is not safe for concurrent use; callers serialize edits per candidate.
type Tracker struct {
	candidate   *types.Candidate
	entries     map[types.ID]Entry
	maxFileSize int64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMaxFileSize overrides MaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxFileSize = n
		}
	}
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{maxFileSize: MaxFileSize}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Initialize discards any previous state and seeds one entry per enrolled service
// from the candidate's persisted results.
func (t *Tracker) Initialize(candidate *types.Candidate) map[types.ID]Entry {
	t.candidate = candidate
	t.entries = make(map[types.ID]Entry, len(candidate.Services))

	for _, svc := range candidate.Services {
		entry := Entry{Status: types.StatusPass}
		if persisted, ok := candidate.ResultFor(svc.ID); ok {
			entry.Note = persisted.ResultNotes
			entry.Status = effectiveStatus(persisted.ResultStatus)
			entry.IncludeInSummary = true
		}
		t.entries[svc.ID] = entry
	}

	return t.State()
}

// State returns a copy of the entry map.
func (t *Tracker) State() map[types.ID]Entry {
	out := make(map[types.ID]Entry, len(t.entries))
	for id, e := range t.entries {
		out[id] = e
	}
	return out
}

// Candidate returns the candidate the tracker was initialized with.
func (t *Tracker) Candidate() *types.Candidate {
	return t.candidate
}

// Entry returns the state of one service.
func (t *Tracker) Entry(serviceID types.ID) (Entry, bool) {
	e, ok := t.entries[serviceID]
	return e, ok
}

// Entries returns all entries in enrollment order.
func (t *Tracker) Entries() []ServiceEntry {
	if t.candidate == nil {
		return nil
	}
	out := make([]ServiceEntry, 0, len(t.candidate.Services))
	for _, svc := range t.candidate.Services {
		out = append(out, ServiceEntry{Service: svc, Entry: t.entries[svc.ID]})
	}
	return out
}

// SetFile selects a new result file for a service and marks it for the summary.
func (t *Tracker) SetFile(serviceID types.ID, blob *Blob) error {
	entry, err := t.lookup(serviceID)
	if err != nil {
		return err
	}
	if blob == nil {
		return &ValidationError{Code: CodeInvalidFile, ServiceID: serviceID, Message: "no file provided"}
	}
	if blob.Size() > t.maxFileSize {
		return &ValidationError{
			Code:      CodeInvalidFile,
			ServiceID: serviceID,
			Message:   fmt.Sprintf("file %s is %d bytes, limit is %d", blob.Name, blob.Size(), t.maxFileSize),
		}
	}
	if !AllowedExtension(blob.Extension()) {
		return &ValidationError{
			Code:      CodeInvalidFile,
			ServiceID: serviceID,
			Message:   fmt.Sprintf("file %s has a disallowed extension", blob.Name),
		}
	}

	entry.SelectedFile = blob
	entry.IncludeInSummary = true
	t.entries[serviceID] = entry
	return nil
}

// ClearFile drops the selected file. A service without a persisted result can no
// longer be included afterwards.
func (t *Tracker) ClearFile(serviceID types.ID) error {
	entry, err := t.lookup(serviceID)
	if err != nil {
		return err
	}
	entry.SelectedFile = nil
	if !t.hasPersisted(serviceID) {
		entry.IncludeInSummary = false
	}
	t.entries[serviceID] = entry
	return nil
}

// SetNote replaces the note of a service.
func (t *Tracker) SetNote(serviceID types.ID, note string) error {
	entry, err := t.lookup(serviceID)
	if err != nil {
		return err
	}
	entry.Note = note
	t.entries[serviceID] = entry
	return nil
}

// SetStatus replaces the status of a service.
func (t *Tracker) SetStatus(serviceID types.ID, status types.Status) error {
	entry, err := t.lookup(serviceID)
	if err != nil {
		return err
	}
	entry.Status = status
	t.entries[serviceID] = entry
	return nil
}

// SetIncluded toggles summary inclusion. Inclusion requires a selected file or a
// persisted result.
func (t *Tracker) SetIncluded(serviceID types.ID, included bool) error {
	entry, err := t.lookup(serviceID)
	if err != nil {
		return err
	}
	if included && entry.SelectedFile == nil && !t.hasPersisted(serviceID) {
		return &ValidationError{
			Code:      CodeNotIncludable,
			ServiceID: serviceID,
			Message:   "service has neither a selected file nor a persisted result",
		}
	}
	entry.IncludeInSummary = included
	t.entries[serviceID] = entry
	return nil
}

// Changed reports whether the note or status of a service with a persisted result
// differs from the persisted values. Services without a persisted result never
// count as changed.
func (t *Tracker) Changed(serviceID types.ID) bool {
	if t.candidate == nil {
		return false
	}
	persisted, ok := t.candidate.ResultFor(serviceID)
	if !ok {
		return false
	}
	entry, ok := t.entries[serviceID]
	if !ok {
		return false
	}
	return entry.Note != persisted.ResultNotes || entry.Status != effectiveStatus(persisted.ResultStatus)
}

func effectiveStatus(s types.Status) types.Status {
	if s == "" {
		return types.StatusPass
	}
	return s
}

// HasNewFiles reports whether any service has a selected file.
func (t *Tracker) HasNewFiles() bool {
	for _, e := range t.entries {
		if e.SelectedFile != nil {
			return true
		}
	}
	return false
}

func (t *Tracker) hasPersisted(serviceID types.ID) bool {
	if t.candidate == nil {
		return false
	}
	_, ok := t.candidate.ResultFor(serviceID)
	return ok
}

func (t *Tracker) lookup(serviceID types.ID) (Entry, error) {
	if t.candidate == nil {
		return Entry{}, &NoCandidateError{}
	}
	entry, ok := t.entries[serviceID]
	if !ok {
		return Entry{}, &UnknownServiceError{ServiceID: serviceID}
	}
	return entry, nil
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/report-composer/internal/artifact"
	"github.com/jonathan/report-composer/internal/results"
	"github.com/jonathan/report-composer/internal/schemas"
	"github.com/jonathan/report-composer/internal/types"
)

// OrderSource loads orders and the service catalog. *backend.Client satisfies it.
type OrderSource interface {
	FetchOrder(ctx context.Context, orderID types.ID) (*types.Order, error)
	FetchServiceCatalog(ctx context.Context) (types.ServiceCatalog, error)
}

// CandidateNotFoundError is returned when the order has no such candidate.
type CandidateNotFoundError struct {
	OrderID     types.ID
	CandidateID types.ID
}

func (e *CandidateNotFoundError) Error() string {
	return fmt.Sprintf("candidate %s not found on order %s", e.CandidateID, e.OrderID)
}

// OpenSession fetches the order and the service catalog and seeds a tracker for
// the candidate.
func OpenSession(ctx context.Context, src OrderSource, orderID, candidateID types.ID, opts ...results.Option) (Session, error) {
	order, err := src.FetchOrder(ctx, orderID)
	if err != nil {
		return Session{}, err
	}
	candidate, ok := order.FindCandidate(candidateID)
	if !ok {
		return Session{}, &CandidateNotFoundError{OrderID: orderID, CandidateID: candidateID}
	}

	catalog, err := src.FetchServiceCatalog(ctx)
	if err != nil {
		return Session{}, err
	}
	candidate.ApplyCatalog(catalog)

	tracker := results.NewTracker(opts...)
	tracker.Initialize(candidate)
	return Session{Order: order, Tracker: tracker, Catalog: catalog}, nil
}

// Edit is one form change for a service. Nil fields are left untouched.
type Edit struct {
	ServiceID types.ID
	File      *results.Blob
	Note      *string
	Status    *types.Status
	Include   *bool
}

// ApplyEdits replays edits onto the tracker. Within an edit the file is applied
// first, so an explicit Include can override the inclusion a new file implies.
func ApplyEdits(tracker *results.Tracker, edits []Edit) error {
	for _, e := range edits {
		if e.File != nil {
			if err := tracker.SetFile(e.ServiceID, e.File); err != nil {
				return err
			}
		}
		if e.Note != nil {
			if err := tracker.SetNote(e.ServiceID, *e.Note); err != nil {
				return err
			}
		}
		if e.Status != nil {
			if err := tracker.SetStatus(e.ServiceID, *e.Status); err != nil {
				return err
			}
		}
		if e.Include != nil {
			if err := tracker.SetIncluded(e.ServiceID, *e.Include); err != nil {
				return err
			}
		}
	}
	return nil
}

// SessionFile is a saved editing session replayed by the CLI.
type SessionFile struct {
	OrderID       string        `json:"order_id"`
	CandidateID   string        `json:"candidate_id"`
	Services      []ServiceEdit `json:"services,omitempty"`
	WithSummary   bool          `json:"with_summary,omitempty"`
	SummaryNotes  string        `json:"summary_notes,omitempty"`
	OverallStatus string        `json:"overall_status,omitempty"`

	dir string
}

// ServiceEdit is the saved form state of one service.
type ServiceEdit struct {
	ServiceID string  `json:"service_id"`
	File      string  `json:"file,omitempty"` // relative to the session file
	Note      *string `json:"note,omitempty"`
	Status    string  `json:"status,omitempty"`
	Include   *bool   `json:"include,omitempty"`
}

// LoadSessionFile reads and schema-validates a session file.
func LoadSessionFile(path string) (*SessionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}
	if err := schemas.ValidateSession(data); err != nil {
		return nil, err
	}

	var sf SessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	sf.dir = filepath.Dir(path)
	return &sf, nil
}

// Edits reads the referenced files and converts the session into tracker edits.
func (sf *SessionFile) Edits() ([]Edit, error) {
	edits := make([]Edit, 0, len(sf.Services))
	for _, svc := range sf.Services {
		e := Edit{ServiceID: types.NewID(svc.ServiceID), Note: svc.Note, Include: svc.Include}

		if svc.Status != "" {
			status, err := types.ParseStatus(svc.Status)
			if err != nil {
				return nil, fmt.Errorf("service %s: %w", svc.ServiceID, err)
			}
			e.Status = &status
		}

		if svc.File != "" {
			blob, err := ReadBlob(sf.resolve(svc.File))
			if err != nil {
				return nil, fmt.Errorf("service %s: %w", svc.ServiceID, err)
			}
			e.File = blob
		}
		edits = append(edits, e)
	}
	return edits, nil
}

// SummaryStatus returns the requested overall status, or "" to derive it.
func (sf *SessionFile) SummaryStatus() (types.Status, error) {
	if sf.OverallStatus == "" {
		return "", nil
	}
	return types.ParseStatus(sf.OverallStatus)
}

func (sf *SessionFile) resolve(path string) string {
	if filepath.IsAbs(path) || sf.dir == "" {
		return path
	}
	return filepath.Join(sf.dir, path)
}

// ReadBlob loads a local result file, detecting its media type from content.
func ReadBlob(path string) (*results.Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file %s: %w", path, err)
	}
	return &results.Blob{
		Name:        filepath.Base(path),
		ContentType: artifact.Sniff(data),
		Data:        data,
	}, nil
}

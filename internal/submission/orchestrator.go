package submission

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/report-composer/internal/backend"
	"github.com/jonathan/report-composer/internal/logging"
	"github.com/jonathan/report-composer/internal/results"
	"github.com/jonathan/report-composer/internal/types"
)

// State is the phase of a submission attempt.
type State string

const (
	StateIdle              State = "idle"
	StateUploadingServices State = "uploading_services"
	StateUploadingSummary  State = "uploading_summary"
	StateSuccess           State = "success"
	StateError             State = "error"
)

// ServiceStatus is the per-service result of a submission attempt.
type ServiceStatus string

const (
	ServiceUploaded     ServiceStatus = "uploaded"
	ServiceSkipped      ServiceStatus = "skipped"
	ServiceFailed       ServiceStatus = "failed"
	ServiceNotAttempted ServiceStatus = "not_attempted"
)

// DefaultSummaryLabel prefixes the combined report file name.
const DefaultSummaryLabel = "Summary"

// Backend is the subset of the order backend used for uploads.
type Backend interface {
	UploadServiceResult(ctx context.Context, candidateID, serviceID types.ID, upload backend.ServiceUpload) (*backend.Response, error)
	UploadSummaryResult(ctx context.Context, candidateID, orderID types.ID, upload backend.SummaryUpload) (*backend.Response, error)
}

// Summary is a composed combined report ready for upload.
type Summary struct {
	Data          []byte
	Notes         string
	OverallStatus types.Status
}

// Request is one submission attempt for the candidate held by Tracker.
type Request struct {
	Order   *types.Order
	Tracker *results.Tracker
	Catalog types.ServiceCatalog
	Summary *Summary // nil when no combined report was composed
}

// ServiceReport describes what happened to one service.
type ServiceReport struct {
	ServiceID   types.ID      `json:"service_id"`
	ServiceName string        `json:"service_name"`
	Status      ServiceStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
}

// Outcome is the result of a submission attempt.
type Outcome struct {
	State           State           `json:"state"`
	Services        []ServiceReport `json:"services"`
	SummaryUploaded bool            `json:"summary_uploaded"`
	SummaryFileName string          `json:"summary_file_name,omitempty"`

	// PendingCandidates lists other candidates of the order that still lack
	// results. Callers decide between refreshing and leaving the order.
	PendingCandidates []types.ID `json:"pending_candidates,omitempty"`
}

// Uploaded returns the ids of services uploaded in this attempt.
func (o *Outcome) Uploaded() []types.ID {
	var ids []types.ID
	for _, s := range o.Services {
		if s.Status == ServiceUploaded {
			ids = append(ids, s.ServiceID)
		}
	}
	return ids
}

// ProgressEvent reports submission progress. Percent never decreases within
// an attempt.
type ProgressEvent struct {
	State     State    `json:"state"`
	Percent   int      `json:"percent"`
	ServiceID types.ID `json:"service_id,omitempty"`
	Message   string   `json:"message"`
}

// ProgressCallback is called when submission progress occurs.
type ProgressCallback func(event ProgressEvent)

// Options configures an Orchestrator.
type Options struct {
	// Concurrency caps parallel service uploads. Values below 2 upload sequentially.
	Concurrency  int
	SummaryLabel string
	OnProgress   ProgressCallback
	Logger       *zap.Logger
}

// Orchestrator sequences service and summary uploads.
type Orchestrator struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
}

// New creates an orchestrator.
func New(b Backend, opts Options) *Orchestrator {
	if opts.SummaryLabel == "" {
		opts.SummaryLabel = DefaultSummaryLabel
	}
	return &Orchestrator{backend: b, opts: opts, logger: logging.OrNop(opts.Logger)}
}

// SummaryFileName returns the upload name of a combined report.
func SummaryFileName(label, candidateName string) string {
	name := strings.TrimSpace(candidateName)
	name = strings.NewReplacer("/", "-", `\`, "-").Replace(name)
	if name == "" {
		name = "candidate"
	}
	return label + "_" + name + ".pdf"
}

// plan is one service and whether it needs an upload.
type plan struct {
	entry  results.ServiceEntry
	name   string
	upload bool
}

// Submit runs one submission attempt. Gating and validation failures return before
// any network call with a nil Outcome. Upload failures return the Outcome in
// StateError together with the error.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Outcome, error) {
	if req.Order == nil || req.Tracker == nil || req.Tracker.Candidate() == nil {
		return nil, &ValidationError{Message: "no candidate selected"}
	}
	if !req.Order.Processing() {
		return nil, &GatingError{OrderID: req.Order.ID, OrderStatus: req.Order.OrderStatus}
	}

	candidate := req.Tracker.Candidate()
	plans := o.plan(req)

	pending := false
	for _, p := range plans {
		pending = pending || p.upload
	}
	if !pending && req.Summary == nil {
		return nil, &ValidationError{Message: "no new files, no changed results and no combined report"}
	}

	outcome := &Outcome{State: StateIdle, Services: make([]ServiceReport, len(plans))}
	for i, p := range plans {
		outcome.Services[i] = ServiceReport{ServiceID: p.entry.Service.ID, ServiceName: p.name, Status: ServiceNotAttempted}
	}

	prog := &progress{cb: o.opts.OnProgress}
	outcome.State = StateUploadingServices
	prog.emit(StateUploadingServices, 0, "", "Uploading service results")

	var err error
	if o.opts.Concurrency > 1 {
		err = o.uploadConcurrent(ctx, candidate.ID, plans, outcome, prog)
	} else {
		err = o.uploadSequential(ctx, candidate.ID, plans, outcome, prog)
	}
	if err != nil {
		outcome.State = StateError
		prog.emitState(StateError, err.Error())
		return outcome, err
	}

	if req.Summary != nil {
		outcome.State = StateUploadingSummary
		fileName := SummaryFileName(o.opts.SummaryLabel, candidate.FullName)
		outcome.SummaryFileName = fileName
		prog.emit(StateUploadingSummary, 50, "", "Uploading combined report")

		_, uerr := o.backend.UploadSummaryResult(ctx, candidate.ID, req.Order.ID, backend.SummaryUpload{
			File:          backend.File{Name: fileName, ContentType: "application/pdf", Data: req.Summary.Data},
			Notes:         req.Summary.Notes,
			OverallStatus: req.Summary.OverallStatus,
		})
		if uerr != nil {
			o.logger.Error("Summary upload failed", zap.String("candidate", candidate.ID.String()), zap.Error(uerr))
			outcome.State = StateError
			serr := &SummaryUploadError{FileName: fileName, Cause: uerr}
			prog.emitState(StateError, serr.Error())
			return outcome, serr
		}
		outcome.SummaryUploaded = true
		o.logger.Info("Summary uploaded", zap.String("candidate", candidate.ID.String()), zap.String("file", fileName))
	}

	outcome.State = StateSuccess
	outcome.PendingCandidates = pendingCandidates(req.Order, candidate.ID)
	prog.emit(StateSuccess, 100, "", "Submission complete")
	return outcome, nil
}

func (o *Orchestrator) plan(req Request) []plan {
	candidate := req.Tracker.Candidate()
	entries := req.Tracker.Entries()
	plans := make([]plan, len(entries))
	for i, e := range entries {
		id := e.Service.ID
		plans[i] = plan{
			entry:  e,
			name:   candidate.ServiceName(id, req.Catalog),
			upload: e.SelectedFile != nil || req.Tracker.Changed(id),
		}
	}
	return plans
}

func (o *Orchestrator) uploadSequential(ctx context.Context, candidateID types.ID, plans []plan, outcome *Outcome, prog *progress) error {
	total := len(plans)
	for i, p := range plans {
		if p.upload {
			if err := o.uploadService(ctx, candidateID, p); err != nil {
				outcome.Services[i].Status = ServiceFailed
				outcome.Services[i].Error = err.Error()
				return err
			}
			outcome.Services[i].Status = ServiceUploaded
		} else {
			outcome.Services[i].Status = ServiceSkipped
		}
		prog.emit(StateUploadingServices, 50*(i+1)/total, p.entry.Service.ID, string(outcome.Services[i].Status)+": "+p.name)
	}
	return nil
}

func (o *Orchestrator) uploadConcurrent(ctx context.Context, candidateID types.ID, plans []plan, outcome *Outcome, prog *progress) error {
	total := len(plans)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	var (
		mu        sync.Mutex
		completed int
		failed    bool
	)
	finish := func(i int, status ServiceStatus, err error) {
		mu.Lock()
		defer mu.Unlock()
		outcome.Services[i].Status = status
		if err != nil {
			outcome.Services[i].Error = err.Error()
			failed = true
			return
		}
		completed++
		prog.emit(StateUploadingServices, 50*completed/total, plans[i].entry.Service.ID, string(status)+": "+plans[i].name)
	}

	for i, p := range plans {
		mu.Lock()
		stop := failed
		mu.Unlock()
		if stop {
			break
		}
		if !p.upload {
			finish(i, ServiceSkipped, nil)
			continue
		}
		g.Go(func() error {
			// Leave not-yet-started services untouched after a failure.
			if gctx.Err() != nil {
				return nil
			}
			if err := o.uploadService(gctx, candidateID, p); err != nil {
				finish(i, ServiceFailed, err)
				return err
			}
			finish(i, ServiceUploaded, nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (o *Orchestrator) uploadService(ctx context.Context, candidateID types.ID, p plan) error {
	upload := backend.ServiceUpload{Notes: p.entry.Note, Status: p.entry.Status}
	if blob := p.entry.SelectedFile; blob != nil {
		upload.File = &backend.File{Name: blob.Name, ContentType: blob.ContentType, Data: blob.Data}
	}

	if _, err := o.backend.UploadServiceResult(ctx, candidateID, p.entry.Service.ID, upload); err != nil {
		o.logger.Error("Service upload failed",
			zap.String("candidate", candidateID.String()),
			zap.String("service", p.name),
			zap.Error(err))
		return &ServiceUploadError{ServiceID: p.entry.Service.ID, ServiceName: p.name, Cause: err}
	}

	o.logger.Info("Service result uploaded",
		zap.String("candidate", candidateID.String()),
		zap.String("service", p.name),
		zap.Bool("file", upload.File != nil))
	return nil
}

// pendingCandidates lists candidates other than current without persisted results.
func pendingCandidates(order *types.Order, current types.ID) []types.ID {
	var ids []types.ID
	for _, c := range order.Candidates {
		if c.ID != current && !c.HasResults() {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// progress serializes callbacks and keeps percentages monotonic.
type progress struct {
	mu   sync.Mutex
	cb   ProgressCallback
	last int
}

func (p *progress) emit(state State, percent int, serviceID types.ID, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if percent < p.last {
		percent = p.last
	}
	p.last = percent
	if p.cb != nil {
		p.cb(ProgressEvent{State: state, Percent: percent, ServiceID: serviceID, Message: msg})
	}
}

func (p *progress) emitState(state State, msg string) {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	p.emit(state, last, "", msg)
}

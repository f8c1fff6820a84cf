package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/report-composer/internal/artifact"
	"github.com/jonathan/report-composer/internal/db"
	"github.com/jonathan/report-composer/internal/pipeline"
	"github.com/jonathan/report-composer/internal/results"
	"github.com/jonathan/report-composer/internal/submission"
	"github.com/jonathan/report-composer/internal/types"
)

// serviceField matches per-service form fields such as services[abc].note.
var serviceField = regexp.MustCompile(`^services\[([^\]]+)\]\.(file|note|status|include)$`)

// requestForm is the parsed editing form of one candidate.
type requestForm struct {
	Edits         []pipeline.Edit
	WithSummary   bool
	SummaryNotes  string
	OverallStatus types.Status
}

// handleReport composes the combined report and returns it as a PDF preview.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, _, unlock, err := s.openSession(w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	defer unlock()

	report, err := s.engine.Compose(r.Context(), sess, nil)
	if err != nil {
		s.logger.Error("Report composition failed", zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	name := submission.SummaryFileName(s.summaryLabel, sess.Tracker.Candidate().FullName)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	w.Header().Set("X-Page-Count", strconv.Itoa(report.Document.PageCount))
	for _, label := range report.Document.SkippedLabels() {
		w.Header().Add("X-Skipped-Artifacts", label)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(report.Document.Data); err != nil {
		s.logger.Warn("Error writing report", zap.Error(err))
	}
}

// handleSubmit uploads the candidate's changed results and, optionally, the
// combined report. Upload failures answer 502 with the partial result.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, form, unlock, err := s.openSession(w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	defer unlock()

	res, err := s.engine.Submit(r.Context(), sess, pipeline.SubmitOptions{
		WithSummary:   form.WithSummary,
		SummaryNotes:  form.SummaryNotes,
		OverallStatus: form.OverallStatus,
	})
	if err != nil {
		s.logger.Error("Submission failed", zap.Error(err))
		body := map[string]any{"error": err.Error()}
		if res != nil {
			body["result"] = res
		}
		s.jsonResponse(w, HTTPStatus(err), body)
		return
	}

	s.jsonResponse(w, http.StatusOK, res)
}

// handleSubmitStream runs a submission and streams its progress as Server-Sent Events.
func (s *Server) handleSubmitStream(w http.ResponseWriter, r *http.Request) {
	sess, form, unlock, err := s.openSession(w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	defer unlock()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, err := s.engine.Submit(r.Context(), sess, pipeline.SubmitOptions{
		WithSummary:   form.WithSummary,
		SummaryNotes:  form.SummaryNotes,
		OverallStatus: form.OverallStatus,
		OnProgress: func(event pipeline.ProgressEvent) {
			if err := sse.WriteEvent(eventProgress, event); err != nil {
				s.logger.Warn("Error writing SSE event", zap.Error(err))
			}
		},
	})
	if err != nil {
		s.logger.Error("Streaming submission failed", zap.Error(err))
		var partial any
		if res != nil {
			partial = res
		}
		sse.WriteError(err, partial)
		return
	}

	sse.WriteComplete(res)
}

// handleGetSubmission returns one recorded submission with its steps.
func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid submission ID format")
		return
	}
	if s.store == nil {
		s.errorResponse(w, http.StatusNotFound, "Submission audit log is not configured")
		return
	}

	sub, err := s.store.GetSubmission(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if sub == nil {
		s.errorResponse(w, http.StatusNotFound, "Submission not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, sub)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// handleListSubmissions returns the most recent submission attempts of an order.
func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.errorResponse(w, http.StatusNotFound, "Submission audit log is not configured")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	subs, err := s.store.ListSubmissions(r.Context(), chi.URLParam(r, "orderID"), limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if subs == nil {
		subs = []db.Submission{}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{"submissions": subs})
}

// openSession parses the editing form, takes the candidate lock, loads the order
// and replays the form onto a fresh tracker. The returned unlock must be called
// when err is nil.
func (s *Server) openSession(w http.ResponseWriter, r *http.Request) (pipeline.Session, *requestForm, func(), error) {
	orderID := types.NewID(chi.URLParam(r, "orderID"))
	candidateID := types.NewID(chi.URLParam(r, "candidateID"))

	form, err := s.parseForm(w, r)
	if err != nil {
		return pipeline.Session{}, nil, nil, err
	}

	unlock := s.locks.Lock(orderID.String() + "/" + candidateID.String())

	sess, err := pipeline.OpenSession(r.Context(), s.backend, orderID, candidateID, results.WithMaxFileSize(s.maxUploadBytes))
	if err == nil {
		err = pipeline.ApplyEdits(sess.Tracker, form.Edits)
	}
	if err != nil {
		unlock()
		return pipeline.Session{}, nil, nil, err
	}
	return sess, form, unlock, nil
}

// parseForm reads a multipart (or urlencoded) editing form. A request without a
// body carries no edits.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) (*requestForm, error) {
	// A form may carry one file per enrolled service.
	r.Body = http.MaxBytesReader(w, r.Body, 8*s.maxUploadBytes)

	var (
		values map[string][]string
		files  map[string][]*multipart.FileHeader
	)
	err := r.ParseMultipartForm(32 << 20)
	switch {
	case err == nil:
		values = r.MultipartForm.Value
		files = r.MultipartForm.File
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			return nil, &ErrValidation{Field: "body", Message: err.Error()}
		}
		values = r.PostForm
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, &ErrValidation{Field: "body", Message: err.Error()}
	}

	form := &requestForm{SummaryNotes: first(values, "summary_notes")}

	if raw := strings.TrimSpace(first(values, "with_summary")); raw != "" {
		form.WithSummary, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, &ErrValidation{Field: "with_summary", Message: "must be a boolean"}
		}
	}
	if raw := strings.TrimSpace(first(values, "overall_status")); raw != "" {
		form.OverallStatus, err = types.ParseStatus(raw)
		if err != nil {
			return nil, &ErrValidation{Field: "overall_status", Message: err.Error()}
		}
	}

	edits := make(map[types.ID]*pipeline.Edit)
	edit := func(id string) *pipeline.Edit {
		sid := types.NewID(id)
		if e, ok := edits[sid]; ok {
			return e
		}
		e := &pipeline.Edit{ServiceID: sid}
		edits[sid] = e
		return e
	}

	for key := range values {
		m := serviceField.FindStringSubmatch(key)
		if m == nil || m[2] == "file" {
			continue
		}
		raw := first(values, key)
		e := edit(m[1])
		switch m[2] {
		case "note":
			e.Note = &raw
		case "status":
			status, err := types.ParseStatus(raw)
			if err != nil {
				return nil, &ErrValidation{Field: key, Message: err.Error()}
			}
			e.Status = &status
		case "include":
			include, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return nil, &ErrValidation{Field: key, Message: "must be a boolean"}
			}
			e.Include = &include
		}
	}

	for key, headers := range files {
		m := serviceField.FindStringSubmatch(key)
		if m == nil || m[2] != "file" || len(headers) == 0 {
			continue
		}
		blob, err := readBlob(headers[0])
		if err != nil {
			return nil, &ErrValidation{Field: key, Message: err.Error()}
		}
		edit(m[1]).File = blob
	}

	ids := make([]string, 0, len(edits))
	for id := range edits {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	for _, id := range ids {
		form.Edits = append(form.Edits, *edits[types.ID(id)])
	}
	return form, nil
}

// readBlob loads an uploaded file into memory, trusting content over the
// client-declared media type.
func readBlob(fh *multipart.FileHeader) (*results.Blob, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return &results.Blob{
		Name:        fh.Filename,
		ContentType: artifact.Sniff(data),
		Data:        data,
	}, nil
}

func first(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

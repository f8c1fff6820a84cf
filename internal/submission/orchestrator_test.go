package submission

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jonathan/report-composer/internal/backend"
	"github.com/jonathan/report-composer/internal/results"
	"github.com/jonathan/report-composer/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type serviceCall struct {
	CandidateID types.ID
	ServiceID   types.ID
	Upload      backend.ServiceUpload
}

type fakeBackend struct {
	mu           sync.Mutex
	serviceCalls []serviceCall
	summaryCalls []backend.SummaryUpload
	failService  map[types.ID]bool
	failSummary  bool
}

func (f *fakeBackend) UploadServiceResult(_ context.Context, candidateID, serviceID types.ID, upload backend.ServiceUpload) (*backend.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serviceCalls = append(f.serviceCalls, serviceCall{CandidateID: candidateID, ServiceID: serviceID, Upload: upload})
	if f.failService[serviceID] {
		return nil, &backend.APIError{Operation: "uploadServiceResult", StatusCode: 500, Message: "boom"}
	}
	return &backend.Response{Success: true}, nil
}

func (f *fakeBackend) UploadSummaryResult(_ context.Context, _, _ types.ID, upload backend.SummaryUpload) (*backend.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls = append(f.summaryCalls, upload)
	if f.failSummary {
		return nil, &backend.APIError{Operation: "uploadSummaryResult", StatusCode: 502, Message: "bad gateway"}
	}
	return &backend.Response{Success: true}, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.serviceCalls) + len(f.summaryCalls)
}

func pdfBlob(name string) *results.Blob {
	return &results.Blob{Name: name, ContentType: "application/pdf", Data: []byte("%PDF-1.7")}
}

// fixture builds an order with candidate c1 enrolled in s1..s3 and a second
// candidate without results.
func fixture(t *testing.T) (*types.Order, *results.Tracker) {
	t.Helper()
	order := &types.Order{
		ID:          "o1",
		OrderStatus: types.OrderStatusProcessing,
		Candidates: []types.Candidate{
			{
				ID:       "c1",
				FullName: "Jane Roe",
				Services: []types.ServiceRef{
					{ID: "s1", DisplayName: "Criminal"},
					{ID: "s2", DisplayName: "Education"},
					{ID: "s3", DisplayName: "Employment"},
				},
			},
			{ID: "c2", FullName: "John Doe"},
		},
	}
	tracker := results.NewTracker()
	tracker.Initialize(&order.Candidates[0])
	return order, tracker
}

func recorder() (*[]ProgressEvent, ProgressCallback) {
	var mu sync.Mutex
	events := &[]ProgressEvent{}
	return events, func(e ProgressEvent) {
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, e)
	}
}

func percents(events []ProgressEvent) []int {
	out := make([]int, len(events))
	for i, e := range events {
		out[i] = e.Percent
	}
	return out
}

func assertMonotonic(t *testing.T, events []ProgressEvent) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent, "progress decreased at event %d", i)
	}
}

func TestSubmit_RejectsEmptySubmissionWithoutNetwork(t *testing.T) {
	order, tracker := fixture(t)
	fb := &fakeBackend{}

	outcome, err := New(fb, Options{}).Submit(context.Background(), Request{Order: order, Tracker: tracker})

	assert.Nil(t, outcome)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, fb.calls())
}

func TestSubmit_GatedByOrderStatus(t *testing.T) {
	order, tracker := fixture(t)
	order.OrderStatus = "completed"
	require.NoError(t, tracker.SetFile("s1", pdfBlob("a.pdf")))
	fb := &fakeBackend{}

	_, err := New(fb, Options{}).Submit(context.Background(), Request{Order: order, Tracker: tracker})

	var gerr *GatingError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "completed", gerr.OrderStatus)
	assert.Zero(t, fb.calls())
}

func TestSubmit_NoCandidate(t *testing.T) {
	order, _ := fixture(t)
	_, err := New(&fakeBackend{}, Options{}).Submit(context.Background(), Request{Order: order, Tracker: results.NewTracker()})

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSubmit_ServiceFailureStopsLaterServices(t *testing.T) {
	order, tracker := fixture(t)
	for _, id := range []types.ID{"s1", "s2", "s3"} {
		require.NoError(t, tracker.SetFile(id, pdfBlob(id.String()+".pdf")))
	}
	fb := &fakeBackend{failService: map[types.ID]bool{"s2": true}}
	events, cb := recorder()

	outcome, err := New(fb, Options{OnProgress: cb}).Submit(context.Background(), Request{
		Order:   order,
		Tracker: tracker,
		Summary: &Summary{Data: []byte("%PDF"), OverallStatus: types.StatusPass},
	})

	var uerr *ServiceUploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, types.ID("s2"), uerr.ServiceID)
	assert.Equal(t, "Education", uerr.ServiceName)
	assert.Contains(t, err.Error(), "Education")

	var apiErr *backend.APIError
	assert.ErrorAs(t, err, &apiErr)

	require.NotNil(t, outcome)
	assert.Equal(t, StateError, outcome.State)
	assert.Equal(t, ServiceUploaded, outcome.Services[0].Status)
	assert.Equal(t, ServiceFailed, outcome.Services[1].Status)
	assert.Equal(t, ServiceNotAttempted, outcome.Services[2].Status)
	assert.Equal(t, []types.ID{"s1"}, outcome.Uploaded())

	require.Len(t, fb.serviceCalls, 2)
	assert.Equal(t, types.ID("s1"), fb.serviceCalls[0].ServiceID)
	assert.Equal(t, types.ID("s2"), fb.serviceCalls[1].ServiceID)
	assert.Empty(t, fb.summaryCalls)

	last := (*events)[len(*events)-1]
	assert.Equal(t, StateError, last.State)
	assertMonotonic(t, *events)
}

func TestSubmit_SkipsUnchangedServices(t *testing.T) {
	order, _ := fixture(t)
	order.Candidates[0].ServiceResults = []types.ServiceResult{
		{ServiceID: "s1", ResultNotes: "ok", ResultStatus: types.StatusPass, ResultFile: "https://files/s1.pdf"},
		{ServiceID: "s2", ResultNotes: "old", ResultStatus: types.StatusPass, ResultFile: "https://files/s2.pdf"},
	}
	tracker := results.NewTracker()
	tracker.Initialize(&order.Candidates[0])
	require.NoError(t, tracker.SetStatus("s2", types.StatusFail))

	fb := &fakeBackend{}
	events, cb := recorder()

	outcome, err := New(fb, Options{OnProgress: cb}).Submit(context.Background(), Request{Order: order, Tracker: tracker})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, outcome.State)
	assert.Equal(t, []ServiceStatus{ServiceSkipped, ServiceUploaded, ServiceSkipped}, []ServiceStatus{
		outcome.Services[0].Status, outcome.Services[1].Status, outcome.Services[2].Status,
	})

	require.Len(t, fb.serviceCalls, 1)
	call := fb.serviceCalls[0]
	assert.Equal(t, types.ID("c1"), call.CandidateID)
	assert.Nil(t, call.Upload.File)
	assert.Equal(t, "old", call.Upload.Notes)
	assert.Equal(t, types.StatusFail, call.Upload.Status)

	assert.Equal(t, []int{0, 16, 33, 50, 100}, percents(*events))
}

func TestSubmit_SummaryProgressAndFileName(t *testing.T) {
	order, tracker := fixture(t)
	require.NoError(t, tracker.SetFile("s1", pdfBlob("a.pdf")))
	fb := &fakeBackend{}
	events, cb := recorder()

	outcome, err := New(fb, Options{SummaryLabel: "Report", OnProgress: cb}).Submit(context.Background(), Request{
		Order:   order,
		Tracker: tracker,
		Summary: &Summary{Data: []byte("%PDF"), Notes: "all clear", OverallStatus: types.StatusPass},
	})
	require.NoError(t, err)

	assert.True(t, outcome.SummaryUploaded)
	assert.Equal(t, "Report_Jane Roe.pdf", outcome.SummaryFileName)
	require.Len(t, fb.summaryCalls, 1)
	assert.Equal(t, "Report_Jane Roe.pdf", fb.summaryCalls[0].File.Name)
	assert.Equal(t, "all clear", fb.summaryCalls[0].Notes)

	got := percents(*events)
	assert.Equal(t, 0, got[0])
	assert.Equal(t, 100, got[len(got)-1])
	assert.Contains(t, got, 50)
	assertMonotonic(t, *events)

	var summaryStart *ProgressEvent
	for i := range *events {
		if (*events)[i].State == StateUploadingSummary {
			summaryStart = &(*events)[i]
			break
		}
	}
	require.NotNil(t, summaryStart)
	assert.Equal(t, 50, summaryStart.Percent)
}

func TestSubmit_SummaryOnly(t *testing.T) {
	order, tracker := fixture(t)
	fb := &fakeBackend{}

	outcome, err := New(fb, Options{}).Submit(context.Background(), Request{
		Order:   order,
		Tracker: tracker,
		Summary: &Summary{Data: []byte("%PDF"), OverallStatus: types.StatusFail},
	})
	require.NoError(t, err)

	assert.Empty(t, fb.serviceCalls)
	require.Len(t, fb.summaryCalls, 1)
	assert.Equal(t, "Summary_Jane Roe.pdf", outcome.SummaryFileName)
	assert.Equal(t, types.StatusFail, fb.summaryCalls[0].OverallStatus)
}

func TestSubmit_SummaryFailureKeepsServiceUploads(t *testing.T) {
	order, tracker := fixture(t)
	require.NoError(t, tracker.SetFile("s1", pdfBlob("a.pdf")))
	fb := &fakeBackend{failSummary: true}

	outcome, err := New(fb, Options{}).Submit(context.Background(), Request{
		Order:   order,
		Tracker: tracker,
		Summary: &Summary{Data: []byte("%PDF")},
	})

	var serr *SummaryUploadError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StateError, outcome.State)
	assert.False(t, outcome.SummaryUploaded)
	assert.Equal(t, ServiceUploaded, outcome.Services[0].Status)
}

func TestSubmit_PendingCandidates(t *testing.T) {
	order, tracker := fixture(t)
	order.Candidates = append(order.Candidates, types.Candidate{
		ID:             "c3",
		ServiceResults: []types.ServiceResult{{ServiceID: "s1"}},
	})
	require.NoError(t, tracker.SetFile("s1", pdfBlob("a.pdf")))

	outcome, err := New(&fakeBackend{}, Options{}).Submit(context.Background(), Request{Order: order, Tracker: tracker})
	require.NoError(t, err)
	assert.Equal(t, []types.ID{"c2"}, outcome.PendingCandidates)
}

func TestSubmit_ConcurrentUploads(t *testing.T) {
	order, tracker := fixture(t)
	for _, id := range []types.ID{"s1", "s2", "s3"} {
		require.NoError(t, tracker.SetFile(id, pdfBlob(id.String()+".pdf")))
	}
	fb := &fakeBackend{}
	events, cb := recorder()

	outcome, err := New(fb, Options{Concurrency: 2, OnProgress: cb}).Submit(context.Background(), Request{Order: order, Tracker: tracker})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, outcome.State)
	assert.Len(t, fb.serviceCalls, 3)
	assert.ElementsMatch(t, []types.ID{"s1", "s2", "s3"}, outcome.Uploaded())
	assert.Equal(t, []int{0, 16, 33, 50, 100}, percents(*events))
}

func TestSubmit_ConcurrentFailure(t *testing.T) {
	order, tracker := fixture(t)
	for _, id := range []types.ID{"s1", "s2", "s3"} {
		require.NoError(t, tracker.SetFile(id, pdfBlob(id.String()+".pdf")))
	}
	fb := &fakeBackend{failService: map[types.ID]bool{"s2": true}}
	events, cb := recorder()

	outcome, err := New(fb, Options{Concurrency: 3, OnProgress: cb}).Submit(context.Background(), Request{Order: order, Tracker: tracker})

	var uerr *ServiceUploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, types.ID("s2"), uerr.ServiceID)
	assert.Equal(t, StateError, outcome.State)
	assert.Equal(t, ServiceFailed, outcome.Services[1].Status)
	for _, s := range outcome.Services {
		assert.Contains(t, []ServiceStatus{ServiceUploaded, ServiceFailed, ServiceNotAttempted}, s.Status)
	}
	assertMonotonic(t, *events)
}

func TestSubmit_CanceledContext(t *testing.T) {
	order, tracker := fixture(t)
	require.NoError(t, tracker.SetFile("s1", pdfBlob("a.pdf")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := New(&fakeBackend{}, Options{Concurrency: 2}).Submit(ctx, Request{Order: order, Tracker: tracker})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StateError, outcome.State)
}

func TestSummaryFileName(t *testing.T) {
	assert.Equal(t, "Summary_Jane Roe.pdf", SummaryFileName("Summary", " Jane Roe "))
	assert.Equal(t, "Summary_a-b.pdf", SummaryFileName("Summary", "a/b"))
	assert.Equal(t, "Summary_candidate.pdf", SummaryFileName("Summary", ""))
}

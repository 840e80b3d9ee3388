package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nivashs/reddit-memes-api/internal/models"
	"github.com/nivashs/reddit-memes-api/internal/reddit"
	"github.com/nivashs/reddit-memes-api/internal/report"
	"github.com/nivashs/reddit-memes-api/internal/store"
)

type fakeService struct {
	topMemes []models.Meme
	topErr   error
	topCalls int

	page    models.Page
	pageErr error

	histPage store.HistoryPage
	histErr  error

	lastLimit int
	lastAfter string
	lastQuery store.HistoryQuery
}

func (f *fakeService) GetTop(ctx context.Context, limit int) ([]models.Meme, error) {
	f.topCalls++
	f.lastLimit = limit
	return f.topMemes, f.topErr
}

func (f *fakeService) GetPaginated(ctx context.Context, limit int, after string) (models.Page, error) {
	f.lastLimit = limit
	f.lastAfter = after
	return f.page, f.pageErr
}

func (f *fakeService) History(ctx context.Context, q store.HistoryQuery) (store.HistoryPage, error) {
	f.lastQuery = q
	return f.histPage, f.histErr
}

type fakeReporter struct {
	called chan report.Credentials
	limit  int
	err    error
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{called: make(chan report.Credentials, 1)}
}

func (f *fakeReporter) Send(ctx context.Context, creds report.Credentials, limit int) error {
	f.limit = limit
	f.called <- creds
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(svc MemeLister, reporter ReportSender, creds report.Credentials) *MemeHandler {
	return NewMemeHandler(svc, reporter, creds, time.Second, testLogger())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	return body["error"]
}

// ---------------------- TOP ----------------------

func TestGetTop_ReturnsFetchedMemes(t *testing.T) {
	svc := &fakeService{topMemes: []models.Meme{{ID: "a1", Title: "first"}, {ID: "b2", Title: "second"}}}
	h := newTestHandler(svc, newFakeReporter(), report.Credentials{})

	rec := httptest.NewRecorder()
	h.GetTop(rec, httptest.NewRequest(http.MethodGet, "/memes/top", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastLimit != DefaultLimit {
		t.Errorf("limit = %d, want default %d", svc.lastLimit, DefaultLimit)
	}

	var got []models.Meme
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not a meme array: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a1" {
		t.Errorf("unexpected memes: %+v", got)
	}
}

func TestGetTop_ForwardsLimit(t *testing.T) {
	svc := &fakeService{}
	h := newTestHandler(svc, newFakeReporter(), report.Credentials{})

	rec := httptest.NewRecorder()
	h.GetTop(rec, httptest.NewRequest(http.MethodGet, "/memes/top?limit=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", svc.lastLimit)
	}
}

func TestGetTop_RejectsBadLimitBeforeFetching(t *testing.T) {
	for _, limit := range []string{"0", "101", "-3", "abc", "1.5"} {
		t.Run(limit, func(t *testing.T) {
			svc := &fakeService{}
			h := newTestHandler(svc, newFakeReporter(), report.Credentials{})

			rec := httptest.NewRecorder()
			h.GetTop(rec, httptest.NewRequest(http.MethodGet, "/memes/top?limit="+limit, nil))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if svc.topCalls != 0 {
				t.Error("service must not be called for an invalid limit")
			}
		})
	}
}

func TestGetTop_UpstreamFailure(t *testing.T) {
	svc := &fakeService{topErr: reddit.ErrUnavailable}
	h := newTestHandler(svc, newFakeReporter(), report.Credentials{})

	rec := httptest.NewRecorder()
	h.GetTop(rec, httptest.NewRequest(http.MethodGet, "/memes/top", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "upstream unavailable" {
		t.Errorf("error = %q, want generic upstream message", msg)
	}
}

func TestGetTop_MalformedUpstream(t *testing.T) {
	svc := &fakeService{topErr: reddit.ErrMalformed}
	h := newTestHandler(svc, newFakeReporter(), report.Credentials{})

	rec := httptest.NewRecorder()
	h.GetTop(rec, httptest.NewRequest(http.MethodGet, "/memes/top", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestGetTop_UnexpectedFailure(t *testing.T) {
	svc := &fakeService{topErr: errors.New("boom")}
	h := newTestHandler(svc, newFakeReporter(), report.Credentials{})

	rec := httptest.NewRecorder()
	h.GetTop(rec, httptest.NewRequest(http.MethodGet, "/memes/top", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if msg := decodeError(t, rec); msg != "internal error" {
		t.Errorf("error = %q, internal detail must not leak", msg)
	}
}

// ---------------------- PAGINATED ----------------------

func TestGetPaginated_ForwardsCursor(t *testing.T) {
	next := "t3_xyz"
	svc := &fakeService{page: models.Page{Items: []models.Meme{{ID: "a1"}}, NextCursor: &next}}
	h := newTestHandler(svc, newFakeReporter(), report.Credentials{})

	rec := httptest.NewRecorder()
	h.GetPaginated(rec, httptest.NewRequest(http.MethodGet, "/memes/paginated?limit=10&after=t3_abc", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.lastAfter != "t3_abc" {
		t.Errorf("after = %q, want t3_abc", svc.lastAfter)
	}
	if svc.lastLimit != 10 {
		t.Errorf("limit = %d, want 10", svc.lastLimit)
	}

	var got models.Page
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not a page: %v", err)
	}
	if got.NextCursor == nil || *got.NextCursor != "t3_xyz" {
		t.Errorf("next_cursor = %v, want t3_xyz", got.NextCursor)
	}
}

func TestGetPaginated_UpstreamFailure(t *testing.T) {
	svc := &fakeService{pageErr: reddit.ErrUnavailable}
	h := newTestHandler(svc, newFakeReporter(), report.Credentials{})

	rec := httptest.NewRecorder()
	h.GetPaginated(rec, httptest.NewRequest(http.MethodGet, "/memes/paginated", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

// ---------------------- HISTORY ----------------------

func TestHistory_ForwardsQuery(t *testing.T) {
	svc := &fakeService{histPage: store.HistoryPage{Items: []models.Meme{{ID: "a1"}}, HasNext: false}}
	h := newTestHandler(svc, newFakeReporter(), report.Credentials{})

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/memes/allmemes?limit=30&cursor=abc&sort_by=score&order=asc", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	want := store.HistoryQuery{Cursor: "abc", Limit: 30, SortBy: "score", Order: "asc"}
	if svc.lastQuery != want {
		t.Errorf("query = %+v, want %+v", svc.lastQuery, want)
	}

	var got struct {
		Items      []models.Meme `json:"items"`
		NextCursor *string       `json:"next_cursor"`
		HasNext    bool          `json:"has_next"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not a history page: %v", err)
	}
	if len(got.Items) != 1 || got.HasNext {
		t.Errorf("unexpected page: %+v", got)
	}
}

func TestHistory_BadSortAndCursor(t *testing.T) {
	cases := map[string]error{
		"sort":   store.ErrBadSort,
		"cursor": store.ErrBadCursor,
	}
	for name, sentinel := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &fakeService{histErr: sentinel}
			h := newTestHandler(svc, newFakeReporter(), report.Credentials{})

			rec := httptest.NewRecorder()
			h.History(rec, httptest.NewRequest(http.MethodGet, "/memes/allmemes", nil))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHistory_StorageFailure(t *testing.T) {
	svc := &fakeService{histErr: store.ErrUnavailable}
	h := newTestHandler(svc, newFakeReporter(), report.Credentials{})

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/memes/allmemes", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

// ---------------------- SEND REPORT ----------------------

func waitForReport(t *testing.T, reporter *fakeReporter) report.Credentials {
	t.Helper()
	select {
	case creds := <-reporter.called:
		return creds
	case <-time.After(time.Second):
		t.Fatal("report was never sent")
		return report.Credentials{}
	}
}

func TestSendReport_UsesEnvCredentials(t *testing.T) {
	reporter := newFakeReporter()
	envCreds := report.Credentials{BotToken: "env-token", ChatID: "env-chat"}
	h := newTestHandler(&fakeService{}, reporter, envCreds)

	rec := httptest.NewRecorder()
	h.SendReport(rec, httptest.NewRequest(http.MethodPost, "/memes/send-report", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp sendReportResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.UsingEnvCredentials {
		t.Error("using_env_credentials should be true without a body")
	}
	if resp.Limit != DefaultLimit {
		t.Errorf("limit = %d, want default %d", resp.Limit, DefaultLimit)
	}

	if got := waitForReport(t, reporter); got != envCreds {
		t.Errorf("sent with %+v, want env credentials", got)
	}
}

func TestSendReport_BodyCredentialsWin(t *testing.T) {
	reporter := newFakeReporter()
	h := newTestHandler(&fakeService{}, reporter, report.Credentials{BotToken: "env-token", ChatID: "env-chat"})

	body := strings.NewReader(`{"credentials": {"bot_token": "body-token", "chat_id": "body-chat"}, "limit": 3}`)
	rec := httptest.NewRecorder()
	h.SendReport(rec, httptest.NewRequest(http.MethodPost, "/memes/send-report", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp sendReportResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.UsingEnvCredentials {
		t.Error("using_env_credentials should be false with body credentials")
	}
	if resp.Limit != 3 {
		t.Errorf("limit = %d, want 3", resp.Limit)
	}

	got := waitForReport(t, reporter)
	if got.BotToken != "body-token" || got.ChatID != "body-chat" {
		t.Errorf("sent with %+v, want body credentials", got)
	}
	if reporter.limit != 3 {
		t.Errorf("report limit = %d, want 3", reporter.limit)
	}
}

func TestSendReport_NoCredentialsAnywhere(t *testing.T) {
	reporter := newFakeReporter()
	h := newTestHandler(&fakeService{}, reporter, report.Credentials{})

	rec := httptest.NewRecorder()
	h.SendReport(rec, httptest.NewRequest(http.MethodPost, "/memes/send-report", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	select {
	case <-reporter.called:
		t.Fatal("no report should be sent without credentials")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendReport_PartialBodyCredentials(t *testing.T) {
	// A credentials object in the body disables the env fallback, so a
	// missing chat id is an error even when the env has one.
	reporter := newFakeReporter()
	h := newTestHandler(&fakeService{}, reporter, report.Credentials{BotToken: "env-token", ChatID: "env-chat"})

	body := strings.NewReader(`{"credentials": {"bot_token": "body-token"}}`)
	rec := httptest.NewRecorder()
	h.SendReport(rec, httptest.NewRequest(http.MethodPost, "/memes/send-report", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSendReport_BadLimit(t *testing.T) {
	reporter := newFakeReporter()
	h := newTestHandler(&fakeService{}, reporter, report.Credentials{BotToken: "t", ChatID: "c"})

	body := strings.NewReader(`{"limit": 500}`)
	rec := httptest.NewRecorder()
	h.SendReport(rec, httptest.NewRequest(http.MethodPost, "/memes/send-report", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSendReport_InvalidJSON(t *testing.T) {
	reporter := newFakeReporter()
	h := newTestHandler(&fakeService{}, reporter, report.Credentials{BotToken: "t", ChatID: "c"})

	body := strings.NewReader(`{"limit": `)
	rec := httptest.NewRecorder()
	h.SendReport(rec, httptest.NewRequest(http.MethodPost, "/memes/send-report", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

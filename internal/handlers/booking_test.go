package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agendaya/turnero/internal/booking"
	"github.com/agendaya/turnero/internal/model"
)

// stubStore serves a single service and one pre-existing booking, enough to
// drive the HTTP status mapping.
type stubStore struct {
	service model.Service
	busy    []booking.Interval
	created []model.Appointment
}

func (s *stubStore) ActiveService(_ context.Context, _, serviceID string) (model.Service, error) {
	if serviceID != s.service.ID {
		return model.Service{}, booking.ErrServiceNotFound
	}
	return s.service, nil
}

func (s *stubStore) BookedIntervals(_ context.Context, _, _ string, _, _ time.Time) ([]booking.Interval, error) {
	return s.busy, nil
}

func (s *stubStore) ResolveClient(_ context.Context, businessID, phone, nameHint string) (model.Client, error) {
	return model.Client{ID: "client-1", BusinessID: businessID, Name: nameHint, WhatsAppPhone: phone}, nil
}

func (s *stubStore) CreateAppointment(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	appt.ID = "appt-1"
	appt.CreatedAt = time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC)
	s.created = append(s.created, appt)
	return appt, nil
}

func newTestBookingHandler(store booking.Store) *BookingHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBookingHandler(booking.NewEngine(store, logger), nil, logger)
}

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestBookingCreate_Success(t *testing.T) {
	store := &stubStore{service: model.Service{ID: "svc-1", DurationMins: 30, IsActive: true}}
	h := newTestBookingHandler(store)

	rec := postJSON(h.Create, `{
		"business_id": "biz-1",
		"staff_id": "staff-1",
		"service_id": "svc-1",
		"client_phone": "+5491100000001",
		"client_name": "Juan",
		"start_time": "2026-09-14T10:00:00Z",
		"origin": "whatsapp"
	}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		AppointmentID string `json:"appointment_id"`
		Status        string `json:"status"`
		EndTime       string `json:"end_time"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.AppointmentID != "appt-1" {
		t.Fatalf("appointment_id = %q", resp.AppointmentID)
	}
	if resp.Status != model.StatusConfirmed {
		t.Fatalf("whatsapp booking should be confirmed, got %q", resp.Status)
	}
	if resp.EndTime != "2026-09-14T10:30:00Z" {
		t.Fatalf("end_time = %q, want start + 30m", resp.EndTime)
	}
}

func TestBookingCreate_UnknownService(t *testing.T) {
	store := &stubStore{service: model.Service{ID: "svc-1", DurationMins: 30, IsActive: true}}
	h := newTestBookingHandler(store)

	rec := postJSON(h.Create, `{
		"business_id": "biz-1",
		"staff_id": "staff-1",
		"service_id": "nope",
		"client_phone": "+5491100000001",
		"start_time": "2026-09-14T10:00:00Z"
	}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestBookingCreate_SlotTaken(t *testing.T) {
	busyStart := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	store := &stubStore{
		service: model.Service{ID: "svc-1", DurationMins: 30, IsActive: true},
		busy:    []booking.Interval{{Start: busyStart, End: busyStart.Add(30 * time.Minute)}},
	}
	h := newTestBookingHandler(store)

	rec := postJSON(h.Create, `{
		"business_id": "biz-1",
		"staff_id": "staff-1",
		"service_id": "svc-1",
		"client_phone": "+5491100000001",
		"start_time": "2026-09-14T10:15:00Z"
	}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestBookingCreate_BadRequests(t *testing.T) {
	store := &stubStore{service: model.Service{ID: "svc-1", DurationMins: 30, IsActive: true}}
	h := newTestBookingHandler(store)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing fields", `{"business_id": "biz-1"}`},
		{"bad start_time", `{"business_id":"b","staff_id":"s","service_id":"svc-1","client_phone":"+54911","start_time":"mañana"}`},
		{"bad origin", `{"business_id":"b","staff_id":"s","service_id":"svc-1","client_phone":"+54911","start_time":"2026-09-14T10:00:00Z","origin":"telegram"}`},
	}
	for _, tc := range cases {
		if rec := postJSON(h.Create, tc.body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/book", nil)
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", rec.Code)
	}
}

func TestBusinessIDFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?business_id=from-query", nil)
	if got := businessIDFromRequest(req); got != "from-query" {
		t.Fatalf("query fallback = %q", got)
	}
	req.Header.Set("X-Business-Id", "from-header")
	if got := businessIDFromRequest(req); got != "from-header" {
		t.Fatalf("header should win, got %q", got)
	}
}

func TestClockOffset(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/slots?workday_open=09:30&workday_close=garbage", nil)
	d, ok := clockOffset(req, "workday_open")
	if !ok || d != 9*time.Hour+30*time.Minute {
		t.Fatalf("workday_open = %v ok=%v", d, ok)
	}
	if _, ok := clockOffset(req, "workday_close"); ok {
		t.Fatalf("garbage value should not parse")
	}
	if _, ok := clockOffset(req, "missing"); ok {
		t.Fatalf("missing param should report not ok")
	}
}

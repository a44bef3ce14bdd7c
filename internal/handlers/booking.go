package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agendaya/turnero/internal/booking"
	"github.com/agendaya/turnero/internal/model"
	"github.com/agendaya/turnero/internal/storage"
)

type BookingHandler struct {
	engine *booking.Engine
	repo   *storage.Repository
	logger *slog.Logger
}

func NewBookingHandler(engine *booking.Engine, repo *storage.Repository, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{engine: engine, repo: repo, logger: logger}
}

type createBookingRequest struct {
	BusinessID  string `json:"business_id"`
	StaffID     string `json:"staff_id"`
	ServiceID   string `json:"service_id"`
	ClientPhone string `json:"client_phone"`
	ClientName  string `json:"client_name"`
	StartTime   string `json:"start_time"`
	Origin      string `json:"origin"`
	Notes       string `json:"notes"`
}

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
	ClientID      string `json:"client_id"`
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	Origin        string `json:"origin"`
	Notes         string `json:"notes,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func apptToItem(appt model.Appointment) appointmentItem {
	return appointmentItem{
		AppointmentID: appt.ID,
		StaffID:       appt.StaffID,
		ClientID:      appt.ClientID,
		ServiceID:     appt.ServiceID,
		StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:       appt.EndTime.UTC().Format(time.RFC3339),
		Status:        appt.Status,
		Origin:        appt.Origin,
		Notes:         appt.Notes,
		CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ClientPhone = strings.TrimSpace(req.ClientPhone)
	if req.BusinessID == "" || req.StaffID == "" || req.ServiceID == "" || req.ClientPhone == "" {
		http.Error(w, "business_id, staff_id, service_id and client_phone are required", http.StatusBadRequest)
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	origin := strings.TrimSpace(req.Origin)
	switch origin {
	case "", model.OriginWeb, model.OriginWhatsApp, model.OriginAdmin:
	default:
		http.Error(w, "invalid origin", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.Book(r.Context(), booking.BookingRequest{
		BusinessID:  req.BusinessID,
		StaffID:     req.StaffID,
		ServiceID:   req.ServiceID,
		ClientPhone: req.ClientPhone,
		ClientName:  strings.TrimSpace(req.ClientName),
		StartTime:   startTime,
		Origin:      origin,
		Notes:       strings.TrimSpace(req.Notes),
	})
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrServiceNotFound):
			http.Error(w, "service not found", http.StatusNotFound)
		case errors.Is(err, booking.ErrSlotTaken):
			http.Error(w, "time slot already booked", http.StatusConflict)
		default:
			h.logger.Error("booking failed", "err", err)
			http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, apptToItem(appt))
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	businessID := strings.TrimSpace(r.URL.Query().Get("business_id"))
	staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if businessID == "" || staffID == "" || serviceID == "" || dateStr == "" {
		http.Error(w, "business_id, staff_id, service_id and date are required", http.StatusBadRequest)
		return
	}

	day, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	svc, err := h.repo.ActiveService(r.Context(), businessID, serviceID)
	if err != nil {
		if errors.Is(err, booking.ErrServiceNotFound) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load service", http.StatusInternalServerError)
		return
	}

	q := booking.SlotQuery{
		BusinessID:      businessID,
		StaffID:         staffID,
		Day:             day,
		ServiceDuration: time.Duration(svc.DurationMins) * time.Minute,
	}
	if open, ok := clockOffset(r, "workday_open"); ok {
		q.WorkdayOpen = open
	}
	if closeAt, ok := clockOffset(r, "workday_close"); ok {
		q.WorkdayClose = closeAt
	}
	if v := strings.TrimSpace(r.URL.Query().Get("step_minutes")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 120 {
			http.Error(w, "invalid step_minutes", http.StatusBadRequest)
			return
		}
		q.Step = time.Duration(n) * time.Minute
	}

	starts, err := h.engine.ListOpenSlots(r.Context(), q)
	if err != nil {
		h.logger.Error("slot listing failed", "err", err)
		http.Error(w, "failed to list slots", http.StatusInternalServerError)
		return
	}

	// A fully booked day is an empty list, not an error.
	resp := make([]slotItem, 0, len(starts))
	for _, s := range starts {
		resp = append(resp, slotItem{
			StartTime: s.UTC().Format(time.RFC3339),
			EndTime:   s.Add(time.Duration(svc.DurationMins) * time.Minute).UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	businessID := businessIDFromRequest(r)
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.repo.ListAppointments(r.Context(), businessID, limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, apptToItem(appt))
	}
	writeJSON(w, http.StatusOK, items)
}

// Transition returns a handler moving appointments to the given status
// (confirm, cancel, complete are separate routes sharing this shape).
func (h *BookingHandler) Transition(to string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			BusinessID    string `json:"business_id"`
			AppointmentID string `json:"appointment_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.BusinessID = strings.TrimSpace(req.BusinessID)
		req.AppointmentID = strings.TrimSpace(req.AppointmentID)
		if req.BusinessID == "" || req.AppointmentID == "" {
			http.Error(w, "business_id and appointment_id required", http.StatusBadRequest)
			return
		}

		appt, err := h.repo.TransitionAppointment(r.Context(), req.BusinessID, req.AppointmentID, to)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				http.Error(w, "appointment not found", http.StatusNotFound)
			case errors.Is(err, storage.ErrInvalidTransition):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				h.logger.Error("status transition failed", "err", err, "to", to)
				http.Error(w, "failed to update appointment", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, apptToItem(appt))
	}
}

func businessIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Business-Id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("business_id"))
}

func clockOffset(r *http.Request, param string) (time.Duration, bool) {
	v := strings.TrimSpace(r.URL.Query().Get(param))
	if v == "" {
		return 0, false
	}
	clock, err := time.Parse("15:04", v)
	if err != nil {
		return 0, false
	}
	return time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agendaya/turnero/internal/storage"
)

// AdminHandler serves the catalog CRUD behind the dashboard: services,
// staff and the client list. Identity comes from the upstream gateway via
// X-Business-Id; authentication itself lives outside this service.
type AdminHandler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewAdminHandler(repo *storage.Repository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{repo: repo, logger: logger}
}

type serviceItem struct {
	ServiceID    string `json:"service_id"`
	Name         string `json:"name"`
	DurationMins int    `json:"duration_minutes"`
	Price        string `json:"price"`
	IsActive     bool   `json:"is_active"`
}

type staffItem struct {
	StaffID  string `json:"staff_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	IsActive bool   `json:"is_active"`
}

type clientItem struct {
	ClientID     string `json:"client_id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	RegisteredAt string `json:"registered_at"`
}

// Services handles GET (list) and POST (create) on /api/v1/services.
func (h *AdminHandler) Services(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromRequest(r)
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		activeOnly := r.URL.Query().Get("active_only") == "true"
		services, err := h.repo.ListServices(r.Context(), businessID, activeOnly)
		if err != nil {
			http.Error(w, "failed to list services", http.StatusInternalServerError)
			return
		}
		items := make([]serviceItem, 0, len(services))
		for _, s := range services {
			items = append(items, serviceItem{
				ServiceID:    s.ID,
				Name:         s.Name,
				DurationMins: s.DurationMins,
				Price:        s.Price,
				IsActive:     s.IsActive,
			})
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req struct {
			Name         string  `json:"name"`
			DurationMins int     `json:"duration_minutes"`
			Price        float64 `json:"price"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || req.DurationMins < 1 {
			http.Error(w, "name and duration_minutes (>= 1) required", http.StatusBadRequest)
			return
		}
		svc, err := h.repo.CreateService(r.Context(), businessID, req.Name, req.DurationMins, strconv.FormatFloat(req.Price, 'f', 2, 64))
		if err != nil {
			h.logger.Error("service create failed", "err", err)
			http.Error(w, "failed to create service", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, serviceItem{
			ServiceID:    svc.ID,
			Name:         svc.Name,
			DurationMins: svc.DurationMins,
			Price:        svc.Price,
			IsActive:     svc.IsActive,
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	businessID := businessIDFromRequest(r)
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}

	var req struct {
		ServiceID    string  `json:"service_id"`
		Name         string  `json:"name"`
		DurationMins int     `json:"duration_minutes"`
		Price        float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ServiceID == "" || req.Name == "" || req.DurationMins < 1 {
		http.Error(w, "service_id, name and duration_minutes (>= 1) required", http.StatusBadRequest)
		return
	}

	// Duration edits only affect future bookings; booked end times stay as
	// captured at booking time.
	err := h.repo.UpdateService(r.Context(), businessID, req.ServiceID, req.Name, req.DurationMins, strconv.FormatFloat(req.Price, 'f', 2, 64))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update service", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetServiceActive soft-deletes or restores a service.
func (h *AdminHandler) SetServiceActive(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, "service_id", h.repo.SetServiceActive)
}

// Staff handles GET (list) and POST (create) on /api/v1/staff.
func (h *AdminHandler) Staff(w http.ResponseWriter, r *http.Request) {
	businessID := businessIDFromRequest(r)
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		activeOnly := r.URL.Query().Get("active_only") == "true"
		staff, err := h.repo.ListStaff(r.Context(), businessID, activeOnly)
		if err != nil {
			http.Error(w, "failed to list staff", http.StatusInternalServerError)
			return
		}
		items := make([]staffItem, 0, len(staff))
		for _, s := range staff {
			items = append(items, staffItem{StaffID: s.ID, Name: s.Name, Phone: s.Phone, IsActive: s.IsActive})
		}
		writeJSON(w, http.StatusOK, items)

	case http.MethodPost:
		var req struct {
			Name  string `json:"name"`
			Phone string `json:"phone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		s, err := h.repo.CreateStaff(r.Context(), businessID, req.Name, strings.TrimSpace(req.Phone))
		if err != nil {
			h.logger.Error("staff create failed", "err", err)
			http.Error(w, "failed to create staff", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, staffItem{StaffID: s.ID, Name: s.Name, Phone: s.Phone, IsActive: s.IsActive})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) UpdateStaff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	businessID := businessIDFromRequest(r)
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}

	var req struct {
		StaffID string `json:"staff_id"`
		Name    string `json:"name"`
		Phone   string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.Name = strings.TrimSpace(req.Name)
	if req.StaffID == "" || req.Name == "" {
		http.Error(w, "staff_id and name required", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateStaff(r.Context(), businessID, req.StaffID, req.Name, strings.TrimSpace(req.Phone)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "staff not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update staff", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetStaffActive deactivates or restores a staff member. Deactivation hides
// them from booking flows; their existing appointments are untouched.
func (h *AdminHandler) SetStaffActive(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, "staff_id", h.repo.SetStaffActive)
}

func (h *AdminHandler) Clients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	businessID := businessIDFromRequest(r)
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}

	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	clients, err := h.repo.ListClients(r.Context(), businessID, limit)
	if err != nil {
		http.Error(w, "failed to list clients", http.StatusInternalServerError)
		return
	}
	items := make([]clientItem, 0, len(clients))
	for _, c := range clients {
		items = append(items, clientItem{
			ClientID:     c.ID,
			Name:         c.Name,
			Phone:        c.WhatsAppPhone,
			RegisteredAt: c.RegisteredAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// RenameClient gives a placeholder-named client their real name. The phone
// stays untouched; it is the identity key.
func (h *AdminHandler) RenameClient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	businessID := businessIDFromRequest(r)
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}

	var req struct {
		ClientID string `json:"client_id"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ClientID == "" || req.Name == "" {
		http.Error(w, "client_id and name required", http.StatusBadRequest)
		return
	}
	if req.Name == storage.DefaultClientName {
		http.Error(w, "name must not be the placeholder", http.StatusBadRequest)
		return
	}

	if err := h.repo.RenameClient(r.Context(), businessID, req.ClientID, req.Name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "client not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to rename client", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request, idField string, update func(ctx context.Context, businessID, id string, active bool) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	businessID := businessIDFromRequest(r)
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	id, _ := raw[idField].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		http.Error(w, idField+" required", http.StatusBadRequest)
		return
	}
	active := false
	if v, ok := raw["active"].(bool); ok {
		active = v
	}

	if err := update(r.Context(), businessID, id, active); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

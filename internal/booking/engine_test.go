package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/agendaya/turnero/internal/model"
)

// fakeStore keeps appointments in memory and enforces the same overlap rule
// the real storage layer enforces with its exclusion constraint.
type fakeStore struct {
	mu       sync.Mutex
	services map[string]model.Service
	clients  map[string]model.Client
	appts    []model.Appointment
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		services: map[string]model.Service{},
		clients:  map[string]model.Client{},
	}
}

func (s *fakeStore) addService(id string, durationMins int, active bool) {
	s.services[id] = model.Service{ID: id, BusinessID: "biz", Name: "svc " + id, DurationMins: durationMins, IsActive: active}
}

func (s *fakeStore) ActiveService(_ context.Context, _, serviceID string) (model.Service, error) {
	svc, ok := s.services[serviceID]
	if !ok || !svc.IsActive {
		return model.Service{}, ErrServiceNotFound
	}
	return svc, nil
}

func (s *fakeStore) BookedIntervals(_ context.Context, _, staffID string, from, to time.Time) ([]Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var busy []Interval
	for _, a := range s.appts {
		if a.StaffID != staffID || !model.CountsAgainstAvailability(a.Status) {
			continue
		}
		if a.StartTime.Before(to) && a.EndTime.After(from) {
			busy = append(busy, Interval{Start: a.StartTime, End: a.EndTime})
		}
	}
	return busy, nil
}

func (s *fakeStore) ResolveClient(_ context.Context, businessID, phone, nameHint string) (model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := businessID + "/" + phone
	if c, ok := s.clients[key]; ok {
		return c, nil
	}
	name := nameHint
	if name == "" {
		name = "Estimado Cliente"
	}
	c := model.Client{ID: "client-" + strconv.Itoa(len(s.clients)+1), BusinessID: businessID, Name: name, WhatsAppPhone: phone}
	s.clients[key] = c
	return c, nil
}

func (s *fakeStore) CreateAppointment(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.appts {
		if existing.StaffID != appt.StaffID || !model.CountsAgainstAvailability(existing.Status) {
			continue
		}
		if existing.StartTime.Before(appt.EndTime) && existing.EndTime.After(appt.StartTime) {
			return model.Appointment{}, ErrSlotTaken
		}
	}
	s.nextID++
	appt.ID = "appt-" + strconv.Itoa(s.nextID)
	appt.CreatedAt = time.Now()
	s.appts = append(s.appts, appt)
	return appt, nil
}

func testEngine(store Store) *Engine {
	e := NewEngine(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.now = func() time.Time { return time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC) }
	return e
}

func TestBook_OriginDeterminesStatus(t *testing.T) {
	store := newFakeStore()
	store.addService("corte", 30, true)
	engine := testEngine(store)
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		origin string
		want   string
	}{
		{model.OriginWhatsApp, model.StatusConfirmed},
		{model.OriginWeb, model.StatusPending},
		{model.OriginAdmin, model.StatusPending},
		{"", model.StatusPending}, // defaults to web
	}
	for i, tc := range cases {
		appt, err := engine.Book(context.Background(), BookingRequest{
			BusinessID:  "biz",
			StaffID:     "staff-" + strconv.Itoa(i), // distinct staff so bookings never collide
			ServiceID:   "corte",
			ClientPhone: "+54911000000" + strconv.Itoa(i),
			StartTime:   start,
			Origin:      tc.origin,
		})
		if err != nil {
			t.Fatalf("origin %q: unexpected error: %v", tc.origin, err)
		}
		if appt.Status != tc.want {
			t.Fatalf("origin %q: status = %q, want %q", tc.origin, appt.Status, tc.want)
		}
		if !appt.EndTime.Equal(start.Add(30 * time.Minute)) {
			t.Fatalf("origin %q: end time not derived from service duration", tc.origin)
		}
	}
}

func TestBook_UnknownOrInactiveService(t *testing.T) {
	store := newFakeStore()
	store.addService("inactivo", 30, false)
	engine := testEngine(store)
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	for _, serviceID := range []string{"nope", "inactivo"} {
		_, err := engine.Book(context.Background(), BookingRequest{
			BusinessID:  "biz",
			StaffID:     "staff-1",
			ServiceID:   serviceID,
			ClientPhone: "+5491100000001",
			StartTime:   start,
		})
		if !errors.Is(err, ErrServiceNotFound) {
			t.Fatalf("service %q: got %v, want ErrServiceNotFound", serviceID, err)
		}
	}
}

func TestBook_OverlapRejected(t *testing.T) {
	store := newFakeStore()
	store.addService("corte", 30, true)
	engine := testEngine(store)
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	if _, err := engine.Book(context.Background(), BookingRequest{
		BusinessID: "biz", StaffID: "staff-1", ServiceID: "corte",
		ClientPhone: "+5491100000001", StartTime: start,
	}); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	// Overlapping by 15 minutes on the same staff member.
	_, err := engine.Book(context.Background(), BookingRequest{
		BusinessID: "biz", StaffID: "staff-1", ServiceID: "corte",
		ClientPhone: "+5491100000002", StartTime: start.Add(15 * time.Minute),
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("got %v, want ErrSlotTaken", err)
	}

	// Back-to-back is fine.
	if _, err := engine.Book(context.Background(), BookingRequest{
		BusinessID: "biz", StaffID: "staff-1", ServiceID: "corte",
		ClientPhone: "+5491100000003", StartTime: start.Add(30 * time.Minute),
	}); err != nil {
		t.Fatalf("back-to-back booking failed: %v", err)
	}

	// Same interval, different staff: no conflict.
	if _, err := engine.Book(context.Background(), BookingRequest{
		BusinessID: "biz", StaffID: "staff-2", ServiceID: "corte",
		ClientPhone: "+5491100000004", StartTime: start,
	}); err != nil {
		t.Fatalf("different staff booking failed: %v", err)
	}
}

func TestBook_ConcurrentSameSlotOneWinner(t *testing.T) {
	store := newFakeStore()
	store.addService("corte", 30, true)
	engine := testEngine(store)
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Book(context.Background(), BookingRequest{
				BusinessID:  "biz",
				StaffID:     "staff-1",
				ServiceID:   "corte",
				ClientPhone: "+54911000000" + strconv.Itoa(i),
				StartTime:   start,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrSlotTaken):
		default:
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}
}

func TestBook_ClientResolutionReusesRecord(t *testing.T) {
	store := newFakeStore()
	store.addService("corte", 30, true)
	engine := testEngine(store)
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	first, err := engine.Book(context.Background(), BookingRequest{
		BusinessID: "biz", StaffID: "staff-1", ServiceID: "corte",
		ClientPhone: "+5491100000001", ClientName: "Juan", StartTime: start,
	})
	if err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	second, err := engine.Book(context.Background(), BookingRequest{
		BusinessID: "biz", StaffID: "staff-1", ServiceID: "corte",
		ClientPhone: "+5491100000001", ClientName: "Otro Nombre", StartTime: start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("second booking failed: %v", err)
	}
	if first.ClientID != second.ClientID {
		t.Fatalf("same phone resolved to different clients: %s vs %s", first.ClientID, second.ClientID)
	}
	if got := store.clients["biz/+5491100000001"].Name; got != "Juan" {
		t.Fatalf("existing client name overwritten: %q", got)
	}
}

func TestBook_Validation(t *testing.T) {
	store := newFakeStore()
	store.addService("corte", 30, true)
	engine := testEngine(store)

	_, err := engine.Book(context.Background(), BookingRequest{
		BusinessID: "biz", StaffID: "staff-1", ServiceID: "corte",
		ClientPhone: "   ", StartTime: time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
	})
	if err == nil {
		t.Fatalf("blank phone should be rejected")
	}
}

func TestIsAvailable_Boundaries(t *testing.T) {
	store := newFakeStore()
	store.addService("corte", 30, true)
	engine := testEngine(store)
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	if _, err := engine.Book(context.Background(), BookingRequest{
		BusinessID: "biz", StaffID: "staff-1", ServiceID: "corte",
		ClientPhone: "+5491100000001", StartTime: start,
	}); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	free, err := engine.IsAvailable(context.Background(), "biz", "staff-1", start.Add(-30*time.Minute), start)
	if err != nil || !free {
		t.Fatalf("interval ending at an existing start should be free, got free=%v err=%v", free, err)
	}
	free, err = engine.IsAvailable(context.Background(), "biz", "staff-1", start.Add(15*time.Minute), start.Add(45*time.Minute))
	if err != nil || free {
		t.Fatalf("overlapping interval should be busy, got free=%v err=%v", free, err)
	}
	if _, err := engine.IsAvailable(context.Background(), "biz", "staff-1", start, start); err == nil {
		t.Fatalf("zero-length interval should error")
	}
}

func TestIsAvailable_CancelledDoesNotBlock(t *testing.T) {
	store := newFakeStore()
	engine := testEngine(store)
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)

	store.appts = append(store.appts,
		model.Appointment{StaffID: "staff-1", StartTime: start, EndTime: start.Add(30 * time.Minute), Status: model.StatusCancelled},
		model.Appointment{StaffID: "staff-1", StartTime: start.Add(time.Hour), EndTime: start.Add(90 * time.Minute), Status: model.StatusCompleted},
	)

	for _, iv := range [][2]time.Time{
		{start, start.Add(30 * time.Minute)},
		{start.Add(time.Hour), start.Add(90 * time.Minute)},
	} {
		free, err := engine.IsAvailable(context.Background(), "biz", "staff-1", iv[0], iv[1])
		if err != nil {
			t.Fatalf("IsAvailable: %v", err)
		}
		if !free {
			t.Fatalf("terminal-status appointment at %s should not block", iv[0].Format("15:04"))
		}
	}
}

func TestListOpenSlots_ReflectsBookings(t *testing.T) {
	store := newFakeStore()
	store.addService("corte", 30, true)
	engine := testEngine(store)
	day := time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)

	if _, err := engine.Book(context.Background(), BookingRequest{
		BusinessID: "biz", StaffID: "staff-1", ServiceID: "corte",
		ClientPhone: "+5491100000001", StartTime: day.Add(10 * time.Hour),
	}); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	slots, err := engine.ListOpenSlots(context.Background(), SlotQuery{
		BusinessID:      "biz",
		StaffID:         "staff-1",
		Day:             day,
		ServiceDuration: 30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("ListOpenSlots: %v", err)
	}

	// Default workday 09:00-20:00 at 30-minute steps is 22 candidates; the
	// 10:00 booking removes exactly one.
	if len(slots) != 21 {
		t.Fatalf("expected 21 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Equal(day.Add(10 * time.Hour)) {
			t.Fatalf("booked 10:00 slot still offered")
		}
	}

	// Every offered slot must pass the availability check.
	for _, s := range slots {
		free, err := engine.IsAvailable(context.Background(), "biz", "staff-1", s, s.Add(30*time.Minute))
		if err != nil {
			t.Fatalf("IsAvailable(%s): %v", s.Format(time.RFC3339), err)
		}
		if !free {
			t.Fatalf("offered slot %s is not actually free", s.Format(time.RFC3339))
		}
	}

	if _, err := engine.ListOpenSlots(context.Background(), SlotQuery{
		BusinessID: "biz", StaffID: "staff-1", Day: day,
	}); err == nil {
		t.Fatalf("missing service duration should error")
	}
}

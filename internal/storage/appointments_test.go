package storage

import (
	"testing"

	"github.com/agendaya/turnero/internal/model"
	"github.com/agendaya/turnero/internal/outbox"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{model.StatusPending, model.StatusConfirmed, true},
		{model.StatusPending, model.StatusCancelled, true},
		{model.StatusPending, model.StatusCompleted, false},
		{model.StatusConfirmed, model.StatusCancelled, true},
		{model.StatusConfirmed, model.StatusCompleted, true},
		{model.StatusConfirmed, model.StatusPending, false},
		{model.StatusCancelled, model.StatusConfirmed, false},
		{model.StatusCancelled, model.StatusPending, false},
		{model.StatusCompleted, model.StatusCancelled, false},
	}
	for _, tc := range cases {
		if got := canTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTransitionEvent(t *testing.T) {
	cases := map[string]string{
		model.StatusConfirmed: outbox.EventAppointmentConfirmed,
		model.StatusCancelled: outbox.EventAppointmentCancelled,
		model.StatusCompleted: outbox.EventAppointmentCompleted,
		model.StatusPending:   "",
	}
	for to, want := range cases {
		if got := transitionEvent(to); got != want {
			t.Errorf("transitionEvent(%s) = %q, want %q", to, got, want)
		}
	}
}

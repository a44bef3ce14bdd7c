package kafkax

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestExtractEventMeta(t *testing.T) {
	msg := kafka.Message{
		Topic: "turnos.appointment.created.v1",
		Key:   []byte("key-1"),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte("evt-1")},
			{Key: "event_type", Value: []byte("turnos.appointment.created.v1")},
		},
	}
	meta := ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != "turnos.appointment.created.v1" {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	// Without headers, fall back to the message key and topic.
	meta = ExtractEventMeta(kafka.Message{Topic: "some.topic", Key: []byte("key-2")})
	if meta.EventID != "key-2" || meta.EventType != "some.topic" {
		t.Fatalf("fallback meta wrong: %+v", meta)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("SplitBrokers = %v", got)
	}
	if got := SplitBrokers(""); got != nil {
		t.Fatalf("empty input should yield nil, got %v", got)
	}
}

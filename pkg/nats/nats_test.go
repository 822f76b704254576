package nats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kripu77/prompt-map-sub001/pkg/events"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	evt := events.NewThreadEvent(events.ThreadCreated, "t-1", "u-1", "Volcanoes", at)

	raw, err := json.Marshal(envelope{Type: evt.EventType(), OccurredAt: evt.Timestamp(), Data: evt.Payload()})
	require.NoError(t, err)

	got, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, events.ThreadCreated, got.EventType())
	assert.True(t, at.Equal(got.Timestamp()))
	assert.Equal(t, "Volcanoes", got.Payload()["title"])
	assert.NotContains(t, got.Payload(), "content")
}

func TestDecode_Garbage(t *testing.T) {
	_, err := decode([]byte("not json"))
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "promptmap.events.THREAD_DELETED", Subject(events.ThreadDeleted))
}

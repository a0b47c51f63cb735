package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeRow(t *testing.T) {
	payload := `{
		"id": "m-1",
		"match_id": "match-9",
		"sender_id": "alice",
		"receiver_id": "bob",
		"payload": "v1:AAAA:BBBB",
		"content_type": "text",
		"media_url": null,
		"created_at": "2026-08-30T12:00:00Z",
		"read_at": null
	}`

	m, err := decodeRow(payload)
	require.NoError(t, err)
	require.Equal(t, "m-1", m.ID)
	require.EqualValues(t, "match-9", m.MatchID)
	require.EqualValues(t, "alice", m.SenderID)
	require.EqualValues(t, "bob", m.ReceiverID)
	require.EqualValues(t, "text", m.ContentType)
	require.Empty(t, m.MediaURL)
	require.Nil(t, m.ReadAt)
	require.Equal(t, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), m.CreatedAt.UTC())
}

func TestDecodeRow_Malformed(t *testing.T) {
	_, err := decodeRow("not json")
	require.Error(t, err)
}

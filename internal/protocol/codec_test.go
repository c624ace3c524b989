package protocol

import (
	"errors"
	"testing"
	"time"

	"arcade-system/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := domain.SearchResult{
		Users: []domain.UserSummary{
			{ID: 1, Name: "alice", AvatarURL: "https://cdn/a.png"},
			{ID: 2, Name: "bob"},
		},
	}

	data, err := EncodeFrame(string(domain.TagSearch), 42, payload)
	require.NoError(t, err)

	frame, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, string(domain.TagSearch), frame.Tag)
	assert.Equal(t, uint32(42), frame.Ref)

	var decoded domain.SearchResult
	require.NoError(t, DecodePayload(frame, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestDecodedFrameReencodesByteIdentical(t *testing.T) {
	profile := domain.UserProfile{
		ID:               7,
		Name:             "carol",
		FriendIDs:        domain.NewIDSet(3, 1, 2),
		BlockedIDs:       domain.NewIDSet(9),
		PendingFriendIDs: domain.NewIDSet(),
		CreatedAt:        domain.TimeToMillis(time.Unix(1700000000, 0)),
	}

	original, err := EncodeFrame(string(domain.TagGetSelf), 5, profile)
	require.NoError(t, err)

	frame, err := DecodeFrame(original)
	require.NoError(t, err)
	var decoded domain.UserProfile
	require.NoError(t, DecodePayload(frame, &decoded))

	reencoded, err := EncodeFrame(frame.Tag, frame.Ref, decoded)
	require.NoError(t, err)
	assert.Equal(t, original, reencoded)
}

func TestIDSetEncodesSorted(t *testing.T) {
	a, err := msgpack.Marshal(domain.NewIDSet(5, 1, 3))
	require.NoError(t, err)
	b, err := msgpack.Marshal(domain.NewIDSet(3, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	var ids []int64
	require.NoError(t, msgpack.Unmarshal(a, &ids))
	assert.Equal(t, []int64{1, 3, 5}, ids)
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	_, err := DecodeFrame([]byte{0xc1, 0xff, 0x00})
	require.Error(t, err)

	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestDecodeFrameRejectsMissingTag(t *testing.T) {
	data, err := msgpack.Marshal(&Frame{Tag: "", Ref: 1})
	require.NoError(t, err)

	_, err = DecodeFrame(data)
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestDecodePayloadRejectsEmptyPayload(t *testing.T) {
	frame := &Frame{Tag: string(domain.TagSearch), Ref: 1}

	var cmd domain.SearchCommand
	err := DecodePayload(frame, &cmd)
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestMillisRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	m := domain.TimeToMillis(at)
	assert.True(t, at.Equal(m.Time()))
}

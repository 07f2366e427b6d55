// internal/track/store_test.go
package track

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestNormalizeTrackingNumber(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"missing leading one", "Z999AA10123456784", "1Z999AA10123456784"},
		{"lowercase z", "z999AA10123456784", "1z999AA10123456784"},
		{"already complete", "1Z999AA10123456784", "1Z999AA10123456784"},
		{"aras number untouched", "AB123456789", "AB123456789"},
		{"surrounding whitespace", "  Z999AA10123456784  ", "1Z999AA10123456784"},
		{"empty", "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeTrackingNumber(tc.input))
			// Normalizing twice must change nothing.
			assert.Equal(t, tc.expected, NormalizeTrackingNumber(NormalizeTrackingNumber(tc.input)))
		})
	}
}

func TestCarrierShapes(t *testing.T) {
	assert.True(t, IsUPS("1Z999AA10123456784"))
	assert.True(t, IsUPS("1z999AA10123456784"))
	assert.False(t, IsUPS("AB123456789"))
	assert.True(t, IsAras("1234567890123"))
	assert.False(t, IsAras("1Z999AA10123456784"))
	assert.False(t, IsAras(""))
}

func TestStoreInsert(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Insert(Record{TrackingNumber: "Z999AA10123456784", RequestID: "12345"})
	require.NoError(t, err)
	assert.Equal(t, "1Z999AA10123456784", rec.TrackingNumber, "insert must normalize")
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, EstimatedDeliveryUnknown, rec.EstimatedDelivery)
	assert.False(t, rec.LastUpdated.IsZero())

	// The normalized form collides with the raw one.
	_, err = s.Insert(Record{TrackingNumber: "1Z999AA10123456784"})
	assert.ErrorIs(t, err, ErrDuplicateRecord)
	assert.Equal(t, 1, s.Count())
}

func TestStoreInsertIfAbsent(t *testing.T) {
	s := newTestStore(t)

	added, err := s.InsertIfAbsent(Record{TrackingNumber: "AB123456789"})
	require.NoError(t, err)
	assert.True(t, added)

	// Duplicate insert is a no-op, not an error.
	added, err = s.InsertIfAbsent(Record{TrackingNumber: "AB123456789"})
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, s.Count())
}

func TestStorePersistence(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)
	_, err = s1.Insert(Record{TrackingNumber: "1Z999AA10123456784", StoreID: "1042"})
	require.NoError(t, err)

	// A fresh store over the same directory sees the record.
	s2, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)
	got, ok := s2.Get("1Z999AA10123456784")
	require.True(t, ok)
	assert.Equal(t, "1042", got.StoreID)
}

func TestStoreLoadTolerance(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataFileName), []byte("{not json"), 0o644))

	// A corrupt file must not prevent startup.
	s, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count())
}

func TestStoreSetStatus(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Insert(Record{TrackingNumber: "AB123456789"})
	require.NoError(t, err)

	require.NoError(t, s.SetStatus("AB123456789", StatusDelivered))
	got, ok := s.Get("AB123456789")
	require.True(t, ok)
	assert.Equal(t, StatusDelivered, got.Status)

	assert.ErrorIs(t, s.SetStatus("XX000000000", StatusInTransit), ErrRecordNotFound)
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Insert(Record{TrackingNumber: "AB123456789"})
	require.NoError(t, err)
	_, err = s.Insert(Record{TrackingNumber: "1Z999AA10123456784"})
	require.NoError(t, err)

	require.NoError(t, s.Delete("AB123456789"))
	assert.Equal(t, 1, s.Count())
	assert.ErrorIs(t, s.Delete("AB123456789"), ErrRecordNotFound)

	require.NoError(t, s.DeleteAll())
	assert.Equal(t, 0, s.Count())
}

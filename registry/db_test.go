package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testRecord(name string) (*ServiceRecord, *CommitHead) {
	record := &ServiceRecord{
		Owner:        []byte("owner"),
		Name:         []byte(name),
		Endpoint:     []byte("https://" + name + ".example"),
		Tags:         [][]byte{[]byte("a"), []byte("b")},
		RegisteredAt: 1000,
	}
	head := &CommitHead{
		Owner:     []byte("owner"),
		UpdatedAt: 1000,
	}
	return record, head
}

func TestCreateAndGetService(t *testing.T) {
	t.Parallel()
	db, err := newDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	record, head := testRecord("svc1")
	require.NoError(t, db.CreateService(record, head))

	got, err := db.GetService([]byte("svc1"))
	require.NoError(t, err)
	require.Equal(t, record.Endpoint, got.Endpoint)
	require.Equal(t, record.Tags, got.Tags)
	require.Equal(t, uint64(0), got.Heat)

	gotHead, err := db.GetHead([]byte("svc1"))
	require.NoError(t, err)
	require.Equal(t, head.Owner, gotHead.Owner)
	require.Empty(t, gotHead.RootHash)
}

func TestGetMissingService(t *testing.T) {
	t.Parallel()
	db, err := newDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	_, err = db.GetService([]byte("nope"))
	require.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetHead([]byte("nope"))
	require.ErrorIs(t, err, ErrNotFound)

	exists, err := db.HasService([]byte("nope"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestApplyCommitOverwritesBoth(t *testing.T) {
	t.Parallel()
	db, err := newDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	record, head := testRecord("svc1")
	require.NoError(t, db.CreateService(record, head))

	record.Heat = 7
	head.RootHash = make([]byte, 32)
	head.UpdatedAt = 2000
	require.NoError(t, db.ApplyCommit(record, head))

	got, err := db.GetService([]byte("svc1"))
	require.NoError(t, err)
	require.Equal(t, uint64(7), got.Heat)

	gotHead, err := db.GetHead([]byte("svc1"))
	require.NoError(t, err)
	require.Len(t, gotHead.RootHash, 32)
	require.Equal(t, int64(2000), gotHead.UpdatedAt)
}

func TestCachedRecordsAreIsolated(t *testing.T) {
	t.Parallel()
	db, err := newDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	record, head := testRecord("svc1")
	require.NoError(t, db.CreateService(record, head))

	// Mutating a returned record must not affect later reads,
	// including the backing arrays of its byte slices.
	got, err := db.GetService([]byte("svc1"))
	require.NoError(t, err)
	got.Heat = 99
	got.Tags[0][0] = 'z'
	got.Endpoint[0] = 'z'
	got.Owner[0] = 'z'

	again, err := db.GetService([]byte("svc1"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), again.Heat)
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, again.Tags)
	require.Equal(t, []byte("https://svc1.example"), again.Endpoint)
	require.Equal(t, []byte("owner"), again.Owner)
}

func TestIterServicesKeyOrder(t *testing.T) {
	t.Parallel()
	db, err := newDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	for _, name := range []string{"banana", "apple", "cherry"} {
		record, head := testRecord(name)
		require.NoError(t, db.CreateService(record, head))
	}

	var names []string
	require.NoError(t, db.IterServices(func(record *ServiceRecord) bool {
		names = append(names, string(record.Name))
		return true
	}))
	require.Equal(t, []string{"apple", "banana", "cherry"}, names)

	// Iteration stops when the callback returns false.
	names = names[:0]
	require.NoError(t, db.IterServices(func(record *ServiceRecord) bool {
		names = append(names, string(record.Name))
		return false
	}))
	require.Equal(t, []string{"apple"}, names)
}

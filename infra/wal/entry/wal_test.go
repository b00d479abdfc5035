package entry

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)

	const n = 100
	for i := 1; i <= n; i++ {
		require.NoError(t, w.Append(NewRecord(RecordLimitOrder, uint64(i), []byte(fmt.Sprintf("order-%d", i)))))
	}
	require.NoError(t, w.Close())

	var got []string
	last, err := Replay(dir, func(r *Record) error {
		assert.Equal(t, RecordLimitOrder, r.Type)
		got = append(got, string(r.Data))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(n), last)
	require.Len(t, got, n)
	assert.Equal(t, "order-1", got[0])
	assert.Equal(t, "order-100", got[n-1])
}

func TestRotationAndReopen(t *testing.T) {
	dir := t.TempDir()

	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		require.NoError(t, w.Append(NewRecord(RecordCancel, uint64(i), make([]byte, 40))))
	}
	require.NoError(t, w.Close())

	files, err := listSegments(dir)
	require.NoError(t, err)
	assert.Len(t, files, 6, "each record fills a segment, plus the fresh active one")

	w, err = Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordCancel, 6, []byte("x"))))
	require.NoError(t, w.Close())

	last, err := Replay(dir, func(*Record) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(6), last)
}

func TestTruncateBefore(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	require.NoError(t, err)
	defer w.Close()

	for i := 1; i <= 4; i++ {
		require.NoError(t, w.Append(NewRecord(RecordBundle, uint64(i), make([]byte, 40))))
	}
	require.NoError(t, w.TruncateBefore(2))

	var seqs []uint64
	_, err = Replay(dir, func(r *Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 4}, seqs)
}

func TestCRCIntegrity(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordResolve, 1, []byte("valid-record"))))
	require.NoError(t, w.Close())

	f, err := os.OpenFile(filepath.Join(dir, "segment-000000.wal"), os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF, 0xFF}, headerSize+2)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Replay(dir, func(*Record) error {
		t.Fatal("corrupt record must not be applied")
		return nil
	})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestTornTailIsIgnored(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordResolve, 1, []byte("whole"))))
	require.NoError(t, w.Append(NewRecord(RecordResolve, 2, []byte("torn"))))
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "segment-000000.wal")
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-3))

	last, err := Replay(dir, func(*Record) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(1), last)

	// Reopening cuts the torn frame so later appends replay cleanly.
	w, err = Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordResolve, 2, []byte("again"))))
	require.NoError(t, w.Append(NewRecord(RecordResolve, 3, []byte("more"))))
	require.NoError(t, w.Close())

	assert.Equal(t, []uint64{1, 2, 3}, replaySeqs(t, dir))
}

func TestTornHeaderIsTrimmedOnOpen(t *testing.T) {
	for name, tail := range map[string][]byte{
		"partial header":     {byte(RecordResolve), 0, 0, 0},
		"header without crc": append([]byte{byte(RecordResolve)}, make([]byte, 20)...),
		"oversize length":    append(append([]byte{byte(RecordResolve)}, make([]byte, 16)...), 0xFF, 0xFF, 0xFF, 0xFF),
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			w, err := Open(Config{Dir: dir})
			require.NoError(t, err)
			require.NoError(t, w.Append(NewRecord(RecordResolve, 1, []byte("whole"))))
			require.NoError(t, w.Close())

			f, err := os.OpenFile(filepath.Join(dir, "segment-000000.wal"), os.O_WRONLY|os.O_APPEND, 0)
			require.NoError(t, err)
			_, err = f.Write(tail)
			require.NoError(t, err)
			require.NoError(t, f.Close())

			w, err = Open(Config{Dir: dir})
			require.NoError(t, err)
			require.NoError(t, w.Append(NewRecord(RecordResolve, 2, []byte("after"))))
			require.NoError(t, w.Close())

			assert.Equal(t, []uint64{1, 2}, replaySeqs(t, dir))
		})
	}
}

func TestOpenRefusesMidSegmentCorruption(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordResolve, 1, []byte("first"))))
	require.NoError(t, w.Append(NewRecord(RecordResolve, 2, []byte("second"))))
	require.NoError(t, w.Close())

	f, err := os.OpenFile(filepath.Join(dir, "segment-000000.wal"), os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xFF}, headerSize+1)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(Config{Dir: dir})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func replaySeqs(t *testing.T, dir string) []uint64 {
	t.Helper()
	var seqs []uint64
	_, err := Replay(dir, func(r *Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	})
	require.NoError(t, err)
	return seqs
}

func TestNonMonotonicSeq(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Append(NewRecord(RecordLimitOrder, 5, nil)))
	require.NoError(t, w.Append(NewRecord(RecordLimitOrder, 5, nil)))
	require.NoError(t, w.Close())

	_, err = Replay(dir, func(*Record) error { return nil })
	assert.Error(t, err)
}

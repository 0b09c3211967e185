package inproc_test

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/inproc"
)

func TestStream_writeRead(t *testing.T) {
	t.Parallel()

	s := inproc.NewStream(4)
	_, err := s.WriteString("one\n")
	require.NoError(t, err)
	_, err = s.WriteString("two\n")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Buffered())

	require.NoError(t, s.Close())
	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(got), "queued frames drain after close")
}

func TestStream_smallReads(t *testing.T) {
	t.Parallel()

	s := inproc.NewStream(0)
	_, err := s.WriteString("abcdef")
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf[:n]))

	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ef", string(buf[:n]))
}

func TestStream_writeCopies(t *testing.T) {
	t.Parallel()

	s := inproc.NewStream(0)
	p := []byte("abc")
	_, err := s.Write(p)
	require.NoError(t, err)
	p[0] = 'x'

	buf := make([]byte, 3)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))
}

func TestStream_windowFull(t *testing.T) {
	t.Parallel()

	s := inproc.NewStream(1)
	_, err := s.WriteString("a")
	require.NoError(t, err)

	_, err = s.WriteString("b")
	assert.ErrorIs(t, err, inproc.ErrStreamFull)
	assert.Equal(t, int64(1), s.Dropped())
	assert.False(t, s.Closed(), "a full window does not close the stream")
}

func TestStream_closed(t *testing.T) {
	t.Parallel()

	s := inproc.NewStream(0)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	_, err := s.WriteString("late")
	assert.ErrorIs(t, err, inproc.ErrStreamClosed)
	assert.True(t, s.Closed())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done is not closed")
	}

	n, err := s.Read(make([]byte, 8))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_readBlocks(t *testing.T) {
	t.Parallel()

	s := inproc.NewStream(0)
	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := s.Read(buf)
		got <- string(buf[:n])
	}()

	select {
	case <-got:
		t.Fatal("read returned before any write")
	case <-time.After(20 * time.Millisecond):
	}

	_, err := s.WriteString("hello")
	require.NoError(t, err)
	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("read did not wake up")
	}
}

func TestStream_closeWakesReader(t *testing.T) {
	t.Parallel()

	s := inproc.NewStream(0)
	errc := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 8))
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("close did not wake the reader")
	}
}

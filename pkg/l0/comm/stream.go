package comm

import (
	"bytes"
	"io"
	"sync"
)

// BufferStream is an in-memory Stream. Bytes injected are read back by
// ReadByte, bytes written are collected for Output.
type BufferStream struct {
	in   bytes.Buffer
	out  bytes.Buffer
	lock sync.Mutex
}

// Inject appends bytes to be read.
func (s *BufferStream) Inject(p ...byte) {
	s.lock.Lock()
	s.in.Write(p)
	s.lock.Unlock()
}

// Output takes all written bytes.
func (s *BufferStream) Output() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := append([]byte(nil), s.out.Bytes()...)
	s.out.Reset()
	return out
}

// Available implements Stream.
func (s *BufferStream) Available() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.in.Len()
}

// ReadByte implements io.ByteReader, it returns io.EOF when empty.
func (s *BufferStream) ReadByte() (byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.in.ReadByte()
}

// Write implements io.Writer.
func (s *BufferStream) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.out.Write(p)
}

// ReadWriterStream adapts a blocking io.ReadWriter into a Stream.
// A background goroutine keeps reading into a buffer so Available
// and ReadByte never block.
type ReadWriterStream struct {
	rw   io.ReadWriter
	buf  bytes.Buffer
	err  error
	lock sync.Mutex

	doneCh chan struct{}
}

// NewStream starts reading rw in the background.
func NewStream(rw io.ReadWriter) *ReadWriterStream {
	s := &ReadWriterStream{rw: rw, doneCh: make(chan struct{})}
	go s.readLoop()
	return s
}

// Available implements Stream.
func (s *ReadWriterStream) Available() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.buf.Len()
}

// ReadByte implements io.ByteReader.
// ErrNoData is returned if nothing is buffered yet; after the reader
// stopped, the buffer is drained and then the read error is returned.
func (s *ReadWriterStream) ReadByte() (byte, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.buf.Len() > 0 {
		return s.buf.ReadByte()
	}
	if s.err != nil {
		return 0, s.err
	}
	return 0, ErrNoData
}

// Write implements io.Writer.
func (s *ReadWriterStream) Write(p []byte) (int, error) {
	return s.rw.Write(p)
}

// Done is closed when the background reader stops.
func (s *ReadWriterStream) Done() <-chan struct{} {
	return s.doneCh
}

// Err returns the error which stopped the background reader.
func (s *ReadWriterStream) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.err
}

// Close implements io.Closer, closing the underlying stream if possible.
func (s *ReadWriterStream) Close() error {
	if closer, ok := s.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *ReadWriterStream) readLoop() {
	defer close(s.doneCh)
	buf := make([]byte, 256)
	for {
		n, err := s.rw.Read(buf)
		s.lock.Lock()
		s.buf.Write(buf[:n])
		if err != nil {
			s.err = err
		}
		s.lock.Unlock()
		if err != nil {
			return
		}
	}
}

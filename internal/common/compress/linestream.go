package compress

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const readBufferSize = 1 << 20

var gzipMagic = []byte{0x1f, 0x8b}

// LineSource yields one line at a time. Next returns io.EOF once the source is exhausted.
type LineSource interface {
	Next() ([]byte, error)
}

// LineStream reads newline delimited lines from a file, transparently decompressing gzip input.
type LineStream struct {
	file   *os.File
	gz     *gzip.Reader
	reader *bufio.Reader
}

// OpenLineStream opens path for line reading. Gzip input is detected from its magic bytes so that plain text
// files can be fed through the same path.
func OpenLineStream(path string) (*LineStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	buffered := bufio.NewReaderSize(f, readBufferSize)
	stream := &LineStream{file: f, reader: buffered}

	magic, err := buffered.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		_ = f.Close()
		return nil, errors.WithStack(err)
	}
	if bytes.Equal(magic, gzipMagic) {
		gz, err := gzip.NewReader(buffered)
		if err != nil {
			_ = f.Close()
			return nil, errors.WithMessagef(err, "reading gzip header of %s", path)
		}
		stream.gz = gz
		stream.reader = bufio.NewReaderSize(gz, readBufferSize)
	}
	return stream, nil
}

// Next returns the next line without its line terminator. The returned slice is owned by the caller.
func (s *LineStream) Next() ([]byte, error) {
	line, err := s.reader.ReadBytes('\n')
	if err == io.EOF {
		if len(line) == 0 {
			return nil, io.EOF
		}
		return bytes.TrimRight(line, "\r"), nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return bytes.TrimRight(line[:len(line)-1], "\r"), nil
}

func (s *LineStream) Close() error {
	var gzErr error
	if s.gz != nil {
		gzErr = s.gz.Close()
	}
	if err := s.file.Close(); err != nil {
		return errors.WithStack(err)
	}
	return gzErr
}

// SliceSource is a LineSource over an in-memory set of lines. Useful for tests.
type SliceSource struct {
	lines [][]byte
	pos   int
}

func NewSliceSource(lines ...string) *SliceSource {
	s := &SliceSource{lines: make([][]byte, len(lines))}
	for i, l := range lines {
		s.lines[i] = []byte(l)
	}
	return s
}

func (s *SliceSource) Next() ([]byte, error) {
	if s.pos >= len(s.lines) {
		return nil, io.EOF
	}
	line := s.lines[s.pos]
	s.pos++
	return line, nil
}

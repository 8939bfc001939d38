package lsp

import (
	"io"
	"os"
)

// Stdio returns the process's stdin/stdout pair as a single stream, the
// transport editors conventionally spawn language servers with.
func Stdio() io.ReadWriteCloser {
	return stdio{in: os.Stdin, out: os.Stdout}
}

type stdio struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (s stdio) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s stdio) Write(p []byte) (int, error) { return s.out.Write(p) }

func (s stdio) Close() error {
	inErr := s.in.Close()
	if err := s.out.Close(); err != nil {
		return err
	}
	return inErr
}

package gps

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	serial "github.com/jacobsa/go-serial/serial"
)

// streamDepth bounds how many unread chunks the reader goroutine may queue.
// At 9600 baud and a 20 ms foreground loop the queue never gets close.
const streamDepth = 64

// Stream moves bytes from the GPS UART into a bounded queue so the
// foreground loop can drain them without blocking.
type Stream struct {
	src    io.ReadCloser
	chunks chan []byte
	logger *slog.Logger
}

// OpenSerial opens the GPS serial port (8N1) and returns a stream reading
// from it. Call Run to start the reader.
func OpenSerial(port string, baud int, logger *slog.Logger) (*Stream, error) {
	serialOpts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	rc, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("gps serial open %s: %w", port, err)
	}
	logger.Info("gps serial port opened", "port", port, "baud", baud)
	return NewStream(rc, logger), nil
}

// NewStream wraps any byte source, e.g. a replay file in tests.
func NewStream(src io.ReadCloser, logger *slog.Logger) *Stream {
	return &Stream{
		src:    src,
		chunks: make(chan []byte, streamDepth),
		logger: logger,
	}
}

// Run reads from the source until ctx is cancelled or the source fails.
func (s *Stream) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.src.Close()
	}()

	defer close(s.chunks)
	buf := make([]byte, 256)
	for {
		n, err := s.src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				return nil
			}
			s.logger.Error("gps read error", "error", err)
			return fmt.Errorf("gps read: %w", err)
		}
	}
}

// Drain hands every queued byte to feed, in order, without blocking.
// It returns the number of bytes delivered.
func (s *Stream) Drain(feed func(byte)) int {
	total := 0
	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return total
			}
			for _, b := range chunk {
				feed(b)
			}
			total += len(chunk)
		default:
			return total
		}
	}
}

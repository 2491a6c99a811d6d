package gps

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// OpenSerial opens the receiver's serial port, 8N1.
func OpenSerial(port string, baud uint) (io.ReadWriteCloser, error) {
	rw, err := serial.Open(serial.OpenOptions{
		PortName:        port,
		BaudRate:        baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return nil, fmt.Errorf("gps: open %s: %w", port, err)
	}
	return rw, nil
}

// Reader pulls RMC fixes out of an NMEA byte stream. Other sentence types
// and unparsable lines are skipped.
type Reader struct {
	r       *bufio.Reader
	skipped int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next RMC fix, valid or not. It returns io.EOF when the
// stream ends.
func (r *Reader) Next() (Fix, error) {
	for {
		line, err := r.r.ReadString('\n')
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "$") {
			if s, perr := nmea.Parse(line); perr != nil {
				r.skipped++
			} else if rmc, ok := s.(nmea.RMC); ok {
				return FixFromRMC(rmc), nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return Fix{}, io.EOF
			}
			return Fix{}, fmt.Errorf("gps: read: %w", err)
		}
	}
}

// Skipped counts lines that looked like NMEA but failed to parse.
func (r *Reader) Skipped() int { return r.skipped }

package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxCommandSize bounds a single packet read from a command file.
const maxCommandSize = 1 << 24

// WriteCommandFile writes entries as a command file: each packet preceded
// by its size as a big-endian int32, the OSC stream framing an offline
// render reads.
func WriteCommandFile(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	var size [4]byte
	for _, e := range entries {
		if len(e.Packet) == 0 || len(e.Packet) > maxCommandSize {
			return fmt.Errorf("write command %d: invalid size %d", e.Seq, len(e.Packet))
		}
		binary.BigEndian.PutUint32(size[:], uint32(len(e.Packet)))
		if _, err := bw.Write(size[:]); err != nil {
			return fmt.Errorf("write command %d: %w", e.Seq, err)
		}
		if _, err := bw.Write(e.Packet); err != nil {
			return fmt.Errorf("write command %d: %w", e.Seq, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write command file: %w", err)
	}
	return nil
}

// ReadCommandFile reads every packet of a command file.
func ReadCommandFile(r io.Reader) ([][]byte, error) {
	br := bufio.NewReader(r)
	var (
		out  [][]byte
		size [4]byte
	)
	for i := 0; ; i++ {
		if _, err := io.ReadFull(br, size[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("read command %d: truncated size: %w", i, err)
		}
		n := int32(binary.BigEndian.Uint32(size[:]))
		if n <= 0 || n > maxCommandSize || n%4 != 0 {
			return nil, fmt.Errorf("read command %d: invalid size %d", i, n)
		}
		packet := make([]byte, n)
		if _, err := io.ReadFull(br, packet); err != nil {
			return nil, fmt.Errorf("read command %d: truncated packet: %w", i, err)
		}
		out = append(out, packet)
	}
}

package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/synthctl/internal/osc"
)

// PacketView is one packet as reported by the CLI.
type PacketView struct {
	Index int      `json:"index"`
	Time  *float64 `json:"time,omitempty"`
	Size  int      `json:"size"`
	Hex   string   `json:"hex"`
	Text  string   `json:"text"`
}

// viewPackets decodes packets for display. times, if not nil, holds the
// engine time of each packet.
func viewPackets(packets [][]byte, times []float64) ([]PacketView, error) {
	views := make([]PacketView, 0, len(packets))
	for i, p := range packets {
		parsed, err := osc.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("packet %d: %w", i+1, err)
		}
		v := PacketView{
			Index: i + 1,
			Size:  len(p),
			Hex:   hex.EncodeToString(p),
			Text:  osc.Format(parsed),
		}
		if times != nil {
			at := times[i]
			v.Time = &at
		}
		views = append(views, v)
	}
	return views, nil
}

func writePackets(w io.Writer, views []PacketView) {
	for _, v := range views {
		if v.Time != nil {
			fmt.Fprintf(w, "#%d  %d bytes  t=%g\n", v.Index, v.Size, *v.Time)
		} else {
			fmt.Fprintf(w, "#%d  %d bytes\n", v.Index, v.Size)
		}
		for _, line := range strings.SplitAfter(v.Text, "\n") {
			if line != "" {
				fmt.Fprintf(w, "    %s", line)
			}
		}
	}
}

// fail reports err through f in JSON mode and returns the exit error.
// Text mode leaves printing to the caller of Execute.
func fail(f *OutputFormatter, exit int, code, message string, err error) error {
	if f.Format == "json" {
		_ = f.Error(code, message, err)
	}
	return WrapExitError(exit, message, err)
}

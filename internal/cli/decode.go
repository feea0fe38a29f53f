package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/roach88/synthctl/internal/journal"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	File string
}

// DecodeResult is what the decode command reports.
type DecodeResult struct {
	Packets []PacketView `json:"packets"`
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode [hex...]",
		Short: "Decode OSC packets",
		Long: `Decode OSC packets given as hex arguments, one packet per argument, or
every packet of a command file written by "synthctl journal export".

Whitespace inside a hex argument is ignored.

Exit codes:
  0 - All packets decoded
  1 - A packet is malformed
  2 - Command error (bad hex, unreadable file)

Examples:
  synthctl decode 2f67726f75702f6e657700002c69696900000000000000010000000000000000
  synthctl decode --file session.cmd --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, cmd, args)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "decode a command file")

	return cmd
}

func runDecode(opts *DecodeOptions, cmd *cobra.Command, args []string) error {
	f := opts.formatter(cmd)

	var packets [][]byte
	switch {
	case opts.File != "" && len(args) > 0:
		return fail(f, ExitCommandError, CodeDecode, "give hex arguments or --file, not both", nil)
	case opts.File != "":
		file, err := os.Open(opts.File)
		if err != nil {
			return fail(f, ExitCommandError, CodeDecode, "failed to open command file", err)
		}
		defer file.Close()

		packets, err = journal.ReadCommandFile(file)
		if err != nil {
			return fail(f, ExitFailure, CodeDecode, "failed to read command file", err)
		}
	case len(args) > 0:
		for i, arg := range args {
			p, err := hex.DecodeString(stripSpace(arg))
			if err != nil {
				return fail(f, ExitCommandError, CodeDecode, fmt.Sprintf("argument %d is not hex", i+1), err)
			}
			packets = append(packets, p)
		}
	default:
		return fail(f, ExitCommandError, CodeDecode, "nothing to decode: give hex arguments or --file", nil)
	}

	views, err := viewPackets(packets, nil)
	if err != nil {
		return fail(f, ExitFailure, CodeDecode, "malformed packet", err)
	}

	var text strings.Builder
	writePackets(&text, views)
	return f.Success(DecodeResult{Packets: views}, text.String())
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

package osc

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Format renders p as indented text, one element per line.
func Format(p Packet) string {
	var sb strings.Builder
	Fprint(&sb, p)
	return sb.String()
}

// Fprint writes the Format rendering of p to w.
func Fprint(w io.Writer, p Packet) {
	fprint(w, p, 0)
}

func fprint(w io.Writer, p Packet, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := p.(type) {
	case *Bundle:
		fmt.Fprintf(w, "%s#bundle %s\n", indent, formatTime(v.TimeTag))
		for _, elem := range v.Elements {
			fprint(w, elem, depth+1)
		}
	case *Message:
		fmt.Fprintf(w, "%s%s ,%s", indent, v.Address, v.Tags)
		for _, arg := range v.Args {
			io.WriteString(w, " ")
			io.WriteString(w, formatArg(arg))
		}
		io.WriteString(w, "\n")
	}
}

func formatTime(tt uint64) string {
	if tt == Immediately {
		return "now"
	}
	return "@" + strconv.FormatFloat(Seconds(tt), 'f', -1, 64)
}

func formatArg(arg any) string {
	switch v := arg.(type) {
	case string:
		return strconv.Quote(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case []byte:
		return "#" + hex.EncodeToString(v)
	case []any:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = formatArg(elem)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case nil:
		return "nil"
	default:
		return fmt.Sprint(v)
	}
}

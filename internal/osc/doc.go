// Package osc encodes and decodes the Open Sound Control 1.0 binary grammar
// spoken by the synthesis engine.
//
// Packets are big-endian and 4-byte aligned. A message is an address
// string, a type-tag string starting with ',' and the argument data. A
// bundle is the literal "#bundle\0", a 64-bit time tag and a sequence of
// elements, each prefixed with its int32 byte size.
//
// Supported type tags:
//
//	'i' int32
//	'f' float32
//	's' string
//	'b' blob ([]byte)
//	'[' ']' array delimiters
//
// The decoder additionally understands 'h', 'd', 't', 'T', 'F' and 'N'.
//
// Writer builds packets in place inside a caller-owned fixed buffer and never
// allocates on the per-argument path. Every write that would run past the end
// of the buffer fails with fault.ErrPacketOverflow.
package osc

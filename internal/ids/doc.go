// Package ids recycles small integer handles for synthesis-graph nodes.
//
// An Allocator owns a fixed window [offset, offset+capacity) of int32 ids and
// a bitset marking which of them are live. Allocation scans round-robin from
// a cursor so a just-freed id is handed out again only after every other
// free slot has been tried. This keeps ids referenced by in-flight packets
// from being reused immediately.
//
// Thread-safety: Allocator is NOT safe for concurrent use. The engine
// session serializes every call behind its own mutex.
package ids

// Package fault defines the error taxonomy shared by every layer of synthctl.
//
// Each failure carries a Code. Callers test for a category with errors.Is
// against the sentinel values (ErrPacketOverflow, ErrLogic, ...) or with the
// Is helper; the Op and Message fields are diagnostic only.
//
// Allocator, codec and builder errors are returned synchronously to the
// caller that triggered them. Engine boundary failures are translated into
// this taxonomy at the session call sites.
package fault

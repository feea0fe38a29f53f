// Package journal records the packets a session sends into SQLite so the
// session can be inspected later or rendered offline from a command file.
//
// # Layout
//
//   - sessions: one row per engine session, keyed by session id
//   - packets: every packet the engine accepted, ordered by seq within its
//     session, with the engine time at send
//
// Packets are stored as raw OSC bytes. All reads order by seq, so an export
// reproduces the exact send order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package journal

// Package loopback provides an in-process engine that accepts every packet
// and keeps a copy. It implements engine.Driver and engine.Backend for tests
// and for the demo command, and lets callers inject failures and push
// replies or notifications back into a session.
package loopback

// Package engine is the control layer of a real-time synthesis engine.
//
// A Session wraps one engine instance created through a Driver. Clients
// build the node graph with Requests and Bundles, which encode commands as
// OSC packets into pooled buffers and hand them to the engine:
//
//	s, err := engine.Open(driver, []engine.Option{engine.DriverBufferSize(256)})
//	voices, err := s.Group(s.Root())
//	err = s.Bundle(now+0.5, func(b *engine.Bundle) error {
//		synth, err := b.Synth("sine", voices, []float32{440}, nil)
//		if err != nil {
//			return err
//		}
//		return b.Activate(synth)
//	})
//
// Sends are fire-and-forget. A caller that needs the engine's answer
// registers a ReplyHandler under a RequestID (see Call); the engine
// delivers replies through the PacketHandler installed at Open, and the
// session runs each handler at most once.
//
// Node ids are allocated client-side from a fixed window, so commands can
// refer to nodes created earlier in the same bundle. Freeing a node
// releases its id at once.
//
// CONCURRENCY:
//
// A Session may be shared between goroutines. The allocator, the request
// counter, the pending table and the subscriber list each sit behind their
// own lock, and no lock is held while a packet crosses into the engine or
// a handler runs. A Request or Bundle belongs to the goroutine that built
// it.
package engine

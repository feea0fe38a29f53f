// Package harness runs scripted engine sessions against the loopback
// engine and checks what was sent.
//
// A scenario is a YAML file: an optional session config, a list of steps
// and a list of assertions.
//
//	name: patch_cable
//	description: Route external bus 0 to external bus 1
//	config:
//	  node_ids: {offset: 1, capacity: 8}
//	steps:
//	  - {op: group, as: voices}
//	  - op: bundle
//	    steps:
//	      - {op: synth, as: cable, def: patch-cable, parent: voices}
//	      - {op: map_input, node: cable, bus: 0, flags: [external]}
//	      - {op: activate, node: cable}
//	  - {op: free, node: "#99", expect_error: INVALID_IDENTIFIER}
//	assertions:
//	  - {type: live_nodes, count: 2}
//	  - {type: sent_order, addresses: [/group/new, /synth/new]}
//
// Steps name the nodes they create with "as". Later steps refer to them by
// that name, to the root group as "root", or to a raw id as "#<n>". A step
// with expect_error must fail with that error code; any other step must
// succeed. The first step that does not behave as expected ends the run.
//
// Every packet the session sends becomes one TraceEvent. The trace renders
// as a transcript that golden tests compare against testdata/golden.
//
// Each Run opens a fresh session on a fresh loopback engine.
package harness

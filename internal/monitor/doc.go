// Package monitor runs one goroutine per (exchange, market type, symbol)
// that pulls messages from a stream source, normalizes them, pushes the
// records into a sink, and emits broadcast events.
//
// A monitor is a small state machine: streaming until the bounded wait
// elapses (stall), a receive fails (transient), or the context is
// cancelled (terminal). Stalls recycle the subscription; transients back
// off and retry; cancellation flushes the sink and closes the source.
// No failure in one symbol's monitor ever terminates a sibling.
package monitor

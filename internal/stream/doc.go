// Package stream defines the capability interface between the collector
// and the exchange connectivity layer.
//
// The collector never speaks an exchange wire protocol. It obtains one
// Source per (exchange, market type, symbol) from a Provider and calls
// the receive operations; everything behind that seam belongs to the
// connectivity collaborator. Adapters register themselves by name so the
// binary picks them up with a side-effect import.
package stream

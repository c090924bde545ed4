// Package hub fans broadcast events out to live subscribers.
//
// The hub owns the connection set exclusively. Broadcast snapshots the
// set under the lock and sends outside it, so a slow or hanging
// subscriber never blocks connects, disconnects, or later broadcasts.
// A connection whose send fails is pruned. New subscribers receive the
// retained configuration payload, if one has been set.
package hub

// Package model defines the normalized record types shared by the
// collector pipeline: orderbook snapshots, trade records, partition keys,
// batch column layouts, and the broadcast event envelope.
package model

// Package batch writes partitioned columnar batch files.
//
// One call writes one parquet file into one partition directory. File
// names carry the write-time unix milliseconds plus a monotonic sequence
// number, so two flushes of the same partition inside the same
// millisecond can never collide. The column layout is caller-supplied
// and emitted in order; records missing a column produce explicit nulls
// so every file in a partition lineage stays rectangular.
package batch

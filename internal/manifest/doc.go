// Package manifest records written batch files in Postgres so
// downstream readers can discover partitions without scanning the data
// root.
//
// Expected table:
//
//	CREATE TABLE IF NOT EXISTS batch_files (
//	    file_path      TEXT PRIMARY KEY,
//	    entity         TEXT NOT NULL,
//	    market_type    TEXT NOT NULL,
//	    exchange       TEXT NOT NULL,
//	    symbol         TEXT NOT NULL,
//	    partition_date DATE NOT NULL,
//	    row_count      INTEGER NOT NULL,
//	    first_ts       BIGINT,
//	    last_ts        BIGINT,
//	    written_at     TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
// The manifest is advisory: an insert failure is logged and never
// disturbs ingestion.
package manifest

// Package export persists extraction results as CSV.
//
// Each grid cell writes its own part file (<run>.cell_0007.csv) with an
// atomic rename, so an interrupted run can resume without re-fetching
// completed cells. Merge combines the parts into <run>.csv, deduplicated
// by record ID and sorted by capture time; Zip optionally compresses the
// result.
package export

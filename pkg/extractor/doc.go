// Package extractor orchestrates geodata extraction runs.
//
// A run divides the search area into a grid of cells and walks each cell
// through the date range in time windows sized to stay under the API's
// per-query result cap. Window length starts from a density estimate and
// adapts to observed counts: windows shrink while a probe shows too many
// matches and grow after sparse ones. Consecutive windows overlap by one
// day so boundary records are never missed; duplicates are dropped by ID.
//
// Each finished cell is written as a CSV part file and recorded in a
// checkpoint, so an interrupted or partially failed run can resume without
// re-fetching completed cells. When every cell is done the parts are
// merged into the final export, optionally zipped.
package extractor

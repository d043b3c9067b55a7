// Package flickr is a thin client for the photos.search endpoint of the
// Flickr REST API.
//
// The client is tuned for bulk geodata extraction: every call waits on a
// shared hourly query budget, transient failures are retried with
// error-type aware backoff, and responses are decoded tolerantly because
// the API mixes quoted and unquoted numbers.
//
// A search never returns more than a bounded number of records regardless
// of how many match, so callers split their area and date range into
// queries that each stay under the cap. Count supports that by probing a
// query's total without fetching records.
package flickr

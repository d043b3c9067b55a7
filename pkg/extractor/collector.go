package extractor

import (
	"context"
	"time"

	"flickrgeo/pkg/config"
	"flickrgeo/pkg/export"
	"flickrgeo/pkg/flickr"
	"flickrgeo/pkg/geo"
	"flickrgeo/pkg/logger"
)

// Window resizing. When a probe shows more matches than the cap the window
// shrinks until everything fits; when a window comes in well under the cap
// the next one grows so sparse periods need fewer queries.
const (
	shrinkFactor  = 0.85
	growFactor    = 1.25
	growThreshold = 0.75

	// windowOverlap guards against records right at a window boundary
	// being missed; duplicates are dropped by ID.
	windowOverlap = 24 * time.Hour
)

// searchClient is the slice of the API client the collector needs
type searchClient interface {
	Search(ctx context.Context, q flickr.Query) (*flickr.SearchResponse, error)
	Count(ctx context.Context, q flickr.Query) (int, error)
}

// collector fetches every record in one grid cell by walking the date
// range in adaptively sized windows, each kept under the query cap
type collector struct {
	client searchClient
	search config.SearchConfig
	logger logger.Logger
}

func newCollector(client searchClient, search config.SearchConfig, log logger.Logger) *collector {
	return &collector{client: client, search: search, logger: log}
}

// query builds the cell query for one time window
func (c *collector) query(bbox geo.BoundingBox, start, end time.Time) flickr.Query {
	return flickr.Query{
		BBox:     bbox.String(),
		MinTaken: start,
		MaxTaken: end,
		PerPage:  c.search.PerPage,
		HasGeo:   c.search.HasGeo,
		Sort:     c.search.Sort,
		Extras:   c.search.Extras,
		Params:   c.search.Params,
	}
}

// collectCell fetches all records in bbox between start and end.
// initialStep is the scheduler's window length in days; the collector
// resizes from there based on observed counts.
func (c *collector) collectCell(ctx context.Context, cell int, bbox geo.BoundingBox, start, end time.Time, initialStep int) ([]export.Record, error) {
	if initialStep < 1 {
		initialStep = 1
	}

	seen := make(map[string]struct{})
	var records []export.Record

	step := initialStep
	cur := start
	for cur.Before(end) {
		winEnd := c.clipWindow(cur, step, end)

		total, err := c.client.Count(ctx, c.query(bbox, cur, winEnd))
		if err != nil {
			logger.LogQuery(cell, windowLabel(cur, winEnd), 0, err)
			return records, err
		}

		// Shrink until the window fits under the cap. A one-day window
		// is fetched regardless: it cannot be subdivided further.
		for total > c.search.Cap && step > 1 {
			step = shrink(step)
			winEnd = c.clipWindow(cur, step, end)

			total, err = c.client.Count(ctx, c.query(bbox, cur, winEnd))
			if err != nil {
				logger.LogQuery(cell, windowLabel(cur, winEnd), 0, err)
				return records, err
			}
		}

		if total > c.search.Cap {
			c.logger.WarnWithFields("window at minimum size still exceeds cap, results may be truncated", map[string]interface{}{
				"cell":   cell,
				"window": windowLabel(cur, winEnd),
				"total":  total,
				"cap":    c.search.Cap,
			})
		}

		added, err := c.fetchWindow(ctx, bbox, cur, winEnd, total, seen, &records)
		if err != nil {
			return records, err
		}

		c.logger.DebugWithFields("window collected", map[string]interface{}{
			"cell":      cell,
			"window":    windowLabel(cur, winEnd),
			"total":     total,
			"added":     added,
			"step_days": step,
		})

		// Sparse window: widen the next one
		if float64(total) < growThreshold*float64(c.search.Cap) {
			step = grow(step)
		}

		cur = c.advance(cur, winEnd, end)
	}

	return records, nil
}

// fetchWindow pages through one window's results, appending records not
// seen before
func (c *collector) fetchWindow(ctx context.Context, bbox geo.BoundingBox, start, end time.Time, total int, seen map[string]struct{}, records *[]export.Record) (int, error) {
	pages := flickr.Pages(total, c.search.PerPage)
	added := 0

	for page := 1; page <= pages; page++ {
		q := c.query(bbox, start, end)
		q.Page = page

		resp, err := c.client.Search(ctx, q)
		if err != nil {
			return added, err
		}

		for _, photo := range resp.Photos.Photo {
			if _, dup := seen[photo.ID]; dup {
				continue
			}

			record, err := export.FromPhoto(photo)
			if err != nil {
				c.logger.WarnWithFields("skipping record with invalid timestamp", map[string]interface{}{
					"id":        photo.ID,
					"datetaken": photo.DateTaken,
				})
				continue
			}

			seen[photo.ID] = struct{}{}
			*records = append(*records, record)
			added++
		}

		// The API stops serving pages past the cap even when total is
		// larger
		if page >= int(resp.Photos.Pages) {
			break
		}
	}

	return added, nil
}

// clipWindow returns the window end for a start and step, clipped to the
// range end
func (c *collector) clipWindow(cur time.Time, step int, end time.Time) time.Time {
	winEnd := cur.Add(time.Duration(step) * 24 * time.Hour)
	if winEnd.After(end) {
		winEnd = end
	}
	return winEnd
}

// advance moves to the next window start. Interior windows back up by one
// day so boundary records are not lost; the overlap duplicates are dropped
// by ID during collection.
func (c *collector) advance(cur, winEnd, end time.Time) time.Time {
	if winEnd.Equal(end) {
		return end
	}
	if winEnd.Sub(cur) > windowOverlap {
		return winEnd.Add(-windowOverlap)
	}
	return winEnd
}

func shrink(step int) int {
	next := int(float64(step) * shrinkFactor)
	if next >= step {
		next = step - 1
	}
	if next < 1 {
		next = 1
	}
	return next
}

func grow(step int) int {
	next := int(float64(step) * growFactor)
	if next <= step {
		next = step + 1
	}
	return next
}

func windowLabel(start, end time.Time) string {
	return start.Format("2006-01-02") + ".." + end.Format("2006-01-02")
}

package extractor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrgeo/pkg/config"
	"flickrgeo/pkg/errors"
	"flickrgeo/pkg/flickr"
	"flickrgeo/pkg/geo"
	"flickrgeo/pkg/logger"
)

const takenLayout = "2006-01-02 15:04:05"

// fakeClient serves canned photos filtered by bbox and window, mimicking
// the API's result cap: totals report every match but no more than cap
// records are ever served.
type fakeClient struct {
	mu     sync.Mutex
	photos []flickr.Photo
	cap    int

	failBBoxes map[string]error

	countCalls  int
	searchCalls int
}

func newFakeClient(cap int, photos []flickr.Photo) *fakeClient {
	return &fakeClient{photos: photos, cap: cap, failBBoxes: map[string]error{}}
}

func makePhoto(id string, lat, lon float64, taken time.Time) flickr.Photo {
	return flickr.Photo{
		ID:         id,
		Owner:      "owner@N01",
		OwnerName:  "someone",
		Title:      "photo " + id,
		Latitude:   flickr.FlexFloat(lat),
		Longitude:  flickr.FlexFloat(lon),
		Accuracy:   16,
		DateTaken:  taken.Format(takenLayout),
		DateUpload: flickr.FlexInt(taken.Unix()),
		Views:      1,
	}
}

func (f *fakeClient) match(q flickr.Query) ([]flickr.Photo, error) {
	b, err := geo.Parse(q.BBox)
	if err != nil {
		return nil, err
	}

	var out []flickr.Photo
	for _, p := range f.photos {
		lat, lon := float64(p.Latitude), float64(p.Longitude)
		if lon < b.MinLon || lon >= b.MaxLon || lat < b.MinLat || lat >= b.MaxLat {
			continue
		}
		taken, err := time.Parse(takenLayout, p.DateTaken)
		if err != nil {
			return nil, err
		}
		if !q.MinTaken.IsZero() && taken.Before(q.MinTaken) {
			continue
		}
		if !q.MaxTaken.IsZero() && !taken.Before(q.MaxTaken) {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DateTaken < out[j].DateTaken })
	return out, nil
}

func (f *fakeClient) Count(ctx context.Context, q flickr.Query) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++

	if err, ok := f.failBBoxes[q.BBox]; ok {
		return 0, err
	}
	matched, err := f.match(q)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

func (f *fakeClient) Search(ctx context.Context, q flickr.Query) (*flickr.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++

	if err, ok := f.failBBoxes[q.BBox]; ok {
		return nil, err
	}
	matched, err := f.match(q)
	if err != nil {
		return nil, err
	}

	total := len(matched)
	if f.cap > 0 && len(matched) > f.cap {
		matched = matched[:f.cap]
	}

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = flickr.MaxPerPage
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	pages := flickr.Pages(len(matched), perPage)

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	return &flickr.SearchResponse{
		Stat: "ok",
		Photos: flickr.PhotoPage{
			Page:    flickr.FlexInt(page),
			Pages:   flickr.FlexInt(pages),
			PerPage: flickr.FlexInt(perPage),
			Total:   flickr.FlexInt(total),
			Photo:   matched[start:end],
		},
	}, nil
}

func testSearchConfig(cap int) config.SearchConfig {
	s := config.DefaultConfig().Search
	s.Cap = cap
	return s
}

func cellBox() geo.BoundingBox {
	return geo.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}
}

func rangeBounds() (time.Time, time.Time) {
	return time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func TestCollectCellFetchesEverything(t *testing.T) {
	start, end := rangeBounds()

	// One photo per week
	var photos []flickr.Photo
	for i := 0; i < 52; i++ {
		photos = append(photos, makePhoto(fmt.Sprintf("p%d", i), 5, 5, start.AddDate(0, 0, i*7)))
	}
	client := newFakeClient(4000, photos)

	coll := newCollector(client, testSearchConfig(4000), logger.NewNopLogger())
	records, err := coll.collectCell(context.Background(), 0, cellBox(), start, end, 365)
	require.NoError(t, err)
	assert.Len(t, records, 52)
}

func TestCollectCellShrinksDenseWindows(t *testing.T) {
	start, end := rangeBounds()

	// Ten photos per day for 100 days: 1000 photos against a cap of 50
	// forces the collector to subdivide.
	var photos []flickr.Photo
	id := 0
	for day := 0; day < 100; day++ {
		for n := 0; n < 10; n++ {
			taken := start.AddDate(0, 0, day).Add(time.Duration(n) * time.Hour)
			photos = append(photos, makePhoto(fmt.Sprintf("p%d", id), 5, 5, taken))
			id++
		}
	}
	client := newFakeClient(50, photos)

	cfg := testSearchConfig(50)
	coll := newCollector(client, cfg, logger.NewNopLogger())
	records, err := coll.collectCell(context.Background(), 0, cellBox(), start, end, 365)
	require.NoError(t, err)

	// Every photo collected exactly once despite window overlap
	assert.Len(t, records, 1000)
	ids := make(map[string]int)
	for _, r := range records {
		ids[r.ID]++
	}
	for id, n := range ids {
		assert.Equal(t, 1, n, "record %s collected %d times", id, n)
	}
}

func TestCollectCellDeduplicatesOverlap(t *testing.T) {
	start, end := rangeBounds()

	// Cluster photos around a window boundary so the one-day overlap
	// re-serves them
	boundary := start.AddDate(0, 0, 30)
	var photos []flickr.Photo
	for i := 0; i < 5; i++ {
		photos = append(photos, makePhoto(fmt.Sprintf("b%d", i), 5, 5, boundary.Add(time.Duration(i-2)*time.Hour)))
	}
	client := newFakeClient(4000, photos)

	coll := newCollector(client, testSearchConfig(4000), logger.NewNopLogger())
	records, err := coll.collectCell(context.Background(), 0, cellBox(), start, end, 30)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestCollectCellEmptyArea(t *testing.T) {
	start, end := rangeBounds()
	client := newFakeClient(4000, nil)

	coll := newCollector(client, testSearchConfig(4000), logger.NewNopLogger())
	records, err := coll.collectCell(context.Background(), 0, cellBox(), start, end, 4000)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCollectCellPropagatesErrors(t *testing.T) {
	start, end := rangeBounds()
	client := newFakeClient(4000, nil)
	client.failBBoxes[cellBox().String()] = errors.ServerError("down", 503)

	coll := newCollector(client, testSearchConfig(4000), logger.NewNopLogger())
	_, err := coll.collectCell(context.Background(), 0, cellBox(), start, end, 4000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}

func TestShrinkAndGrowAlwaysProgress(t *testing.T) {
	assert.Equal(t, 1, shrink(1))
	assert.Equal(t, 1, shrink(2)) // 2*0.85 = 1.7 -> 1
	assert.Less(t, shrink(100), 100)
	assert.Greater(t, grow(1), 1)
	assert.Greater(t, grow(100), 100)
}

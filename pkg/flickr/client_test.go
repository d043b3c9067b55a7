package flickr

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flickrgeo/pkg/config"
	"flickrgeo/pkg/errors"
	"flickrgeo/pkg/logger"
)

const sampleResponse = `{
	"photos": {
		"page": "1",
		"pages": "3",
		"perpage": 250,
		"total": "612",
		"photo": [
			{
				"id": "52741", "owner": "12037949754@N01", "ownername": "testuser",
				"secret": "a123", "server": "1", "farm": 1,
				"title": "harbour at dusk",
				"latitude": "60.1699", "longitude": 24.9384, "accuracy": "16",
				"datetaken": "2014-06-21 18:03:12",
				"dateupload": "1403371400",
				"views": "57",
				"tags": "harbour sunset"
			}
		]
	},
	"stat": "ok"
}`

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.Flickr.Endpoint = server.URL
	cfg.Flickr.APIKey = "test-key"
	cfg.RateLimit.MaxRetries = 1
	cfg.Extract.QueryTimeout = 5 * time.Second

	return NewClient(cfg, logger.NewNopLogger()), server
}

func TestSearchDecodesResponse(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleResponse)
	})

	resp, err := client.Search(context.Background(), Query{BBox: "24.7,60.1,25.3,60.4"})
	require.NoError(t, err)

	assert.Equal(t, 1, int(resp.Photos.Page))
	assert.Equal(t, 3, int(resp.Photos.Pages))
	assert.Equal(t, 612, int(resp.Photos.Total))
	require.Len(t, resp.Photos.Photo, 1)

	p := resp.Photos.Photo[0]
	assert.Equal(t, "52741", p.ID)
	assert.Equal(t, "testuser", p.OwnerName)
	assert.InDelta(t, 60.1699, float64(p.Latitude), 1e-9)
	assert.InDelta(t, 24.9384, float64(p.Longitude), 1e-9)
	assert.Equal(t, 57, int(p.Views))

	taken, err := p.TakenTime()
	require.NoError(t, err)
	assert.Equal(t, 2014, taken.Year())
	assert.Equal(t, time.June, taken.Month())

	assert.Equal(t, int64(1403371400), p.UploadTime().Unix())
}

func TestSearchSendsExpectedParameters(t *testing.T) {
	var query map[string]string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		fmt.Fprint(w, sampleResponse)
	})

	q := Query{
		BBox:     "24.7,60.1,25.3,60.4",
		MinTaken: time.Date(2014, time.January, 1, 0, 0, 0, 0, time.UTC),
		MaxTaken: time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC),
		Page:     2,
		PerPage:  100,
		HasGeo:   true,
		Sort:     "date-taken-asc",
		Extras:   "geo,views",
		Params:   map[string]string{"tags": "sunset"},
	}

	_, err := client.Search(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, "flickr.photos.search", query["method"])
	assert.Equal(t, "test-key", query["api_key"])
	assert.Equal(t, "json", query["format"])
	assert.Equal(t, "1", query["nojsoncallback"])
	assert.Equal(t, "24.7,60.1,25.3,60.4", query["bbox"])
	assert.Equal(t, "2014-01-01 00:00:00", query["min_taken_date"])
	assert.Equal(t, "2015-01-01 00:00:00", query["max_taken_date"])
	assert.Equal(t, "2", query["page"])
	assert.Equal(t, "100", query["per_page"])
	assert.Equal(t, "1", query["has_geo"])
	assert.Equal(t, "date-taken-asc", query["sort"])
	assert.Equal(t, "geo,views", query["extras"])
	assert.Equal(t, "sunset", query["tags"])
}

func TestSearchDefaultsPageAndPerPage(t *testing.T) {
	var page, perPage string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		page = r.URL.Query().Get("page")
		perPage = r.URL.Query().Get("per_page")
		fmt.Fprint(w, sampleResponse)
	})

	_, err := client.Search(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, "1", page)
	assert.Equal(t, "250", perPage)
}

func TestCountProbesWithSingleRecord(t *testing.T) {
	var perPage string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		perPage = r.URL.Query().Get("per_page")
		fmt.Fprint(w, `{"photos":{"page":1,"pages":612,"perpage":1,"total":"612","photo":[]},"stat":"ok"}`)
	})

	total, err := client.Count(context.Background(), Query{BBox: "24.7,60.1,25.3,60.4"})
	require.NoError(t, err)
	assert.Equal(t, 612, total)
	assert.Equal(t, "1", perPage)
}

func TestSearchMapsAPIFailureCodes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, err error)
	}{
		{
			name: "invalid api key",
			body: `{"stat":"fail","code":100,"message":"Invalid API Key"}`,
			check: func(t *testing.T, err error) {
				apiErr, ok := err.(*errors.Error)
				require.True(t, ok)
				assert.Equal(t, errors.ErrorTypeAuth, apiErr.Type)
			},
		},
		{
			name: "service unavailable",
			body: `{"stat":"fail","code":105,"message":"Service currently unavailable"}`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "service unavailable")
			},
		},
		{
			name: "unknown failure",
			body: `{"stat":"fail","code":999,"message":"strange"}`,
			check: func(t *testing.T, err error) {
				apiErr, ok := err.(*errors.Error)
				require.True(t, ok)
				assert.Equal(t, errors.ErrorTypeUnknown, apiErr.Type)
				assert.Equal(t, 999, apiErr.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})
			client.retrier = client.retrier.WithBackoff(&constantDelay{})

			_, err := client.Search(context.Background(), Query{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSearchMapsHTTPStatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		wantType errors.ErrorType
	}{
		{http.StatusUnauthorized, errors.ErrorTypeAuth},
		{http.StatusForbidden, errors.ErrorTypeAuth},
		{http.StatusNotFound, errors.ErrorTypeNotFound},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := client.Search(context.Background(), Query{})
			require.Error(t, err)

			apiErr, ok := err.(*errors.Error)
			require.True(t, ok, "expected a typed error, got %T", err)
			assert.Equal(t, tt.wantType, apiErr.Type)
		})
	}
}

func TestSearchRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, sampleResponse)
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Flickr.Endpoint = server.URL
	cfg.Flickr.APIKey = "test-key"
	cfg.RateLimit.MaxRetries = 3
	client := NewClient(cfg, logger.NewNopLogger())
	// Shorten the retry delay so the test runs fast
	client.retrier = client.retrier.WithBackoff(&constantDelay{})

	resp, err := client.Search(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 612, int(resp.Photos.Total))
}

type constantDelay struct{}

func (constantDelay) NextDelay(int) time.Duration { return time.Millisecond }

func TestSearchRejectsMalformedJSON(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"photos": [broken`)
	})

	_, err := client.Search(context.Background(), Query{})
	require.Error(t, err)
	apiErr, ok := err.(*errors.Error)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeParsing, apiErr.Type)
}

func TestPages(t *testing.T) {
	assert.Equal(t, 0, Pages(0, 250))
	assert.Equal(t, 1, Pages(1, 250))
	assert.Equal(t, 1, Pages(250, 250))
	assert.Equal(t, 2, Pages(251, 250))
	assert.Equal(t, 3, Pages(612, 250))
	// zero per-page falls back to the API maximum
	assert.Equal(t, 3, Pages(612, 0))
}

package flickr

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// FlexInt decodes a JSON value that may arrive as a number or a quoted
// string. The API is inconsistent about this for counts and totals.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	*f = FlexInt(v)
	return nil
}

// FlexFloat decodes a JSON value that may arrive as a number or a quoted
// string. Coordinates come back quoted.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// Photo is a single geotagged record from a search response
type Photo struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	OwnerName  string    `json:"ownername"`
	Secret     string    `json:"secret"`
	Server     string    `json:"server"`
	Farm       FlexInt   `json:"farm"`
	Title      string    `json:"title"`
	Latitude   FlexFloat `json:"latitude"`
	Longitude  FlexFloat `json:"longitude"`
	Accuracy   FlexInt   `json:"accuracy"`
	DateTaken  string    `json:"datetaken"`
	DateUpload FlexInt   `json:"dateupload"`
	Views      FlexInt   `json:"views"`
	Tags       string    `json:"tags"`
}

// TakenTime parses the record's capture timestamp. The API reports it as
// "2006-01-02 15:04:05" without a zone.
func (p Photo) TakenTime() (time.Time, error) {
	return time.Parse("2006-01-02 15:04:05", p.DateTaken)
}

// UploadTime converts the epoch upload timestamp to UTC
func (p Photo) UploadTime() time.Time {
	return time.Unix(int64(p.DateUpload), 0).UTC()
}

// PhotoPage is one page of search results
type PhotoPage struct {
	Page    FlexInt `json:"page"`
	Pages   FlexInt `json:"pages"`
	PerPage FlexInt `json:"perpage"`
	Total   FlexInt `json:"total"`
	Photo   []Photo `json:"photo"`
}

// SearchResponse is the envelope of a photos.search call. Stat is "ok" on
// success; on failure Code and Message describe the API-level error.
type SearchResponse struct {
	Photos  PhotoPage `json:"photos"`
	Stat    string    `json:"stat"`
	Code    int       `json:"code"`
	Message string    `json:"message"`
}

// decodeSearchResponse parses a raw response body
func decodeSearchResponse(data []byte) (*SearchResponse, error) {
	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

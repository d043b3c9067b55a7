package export

import (
	"strconv"
	"time"

	"flickrgeo/pkg/flickr"
)

const takenLayout = "2006-01-02 15:04:05"

// Record is one geotagged observation in the export
type Record struct {
	ID         string
	Owner      string
	OwnerName  string
	Title      string
	Latitude   float64
	Longitude  float64
	Accuracy   int
	DateTaken  time.Time
	DateUpload time.Time
	Views      int
	Tags       string
}

// FromPhoto converts an API record into an export record. Records whose
// capture timestamp does not parse are rejected because the derived date
// columns and the final sort depend on it.
func FromPhoto(p flickr.Photo) (Record, error) {
	taken, err := p.TakenTime()
	if err != nil {
		return Record{}, err
	}

	return Record{
		ID:         p.ID,
		Owner:      p.Owner,
		OwnerName:  p.OwnerName,
		Title:      p.Title,
		Latitude:   float64(p.Latitude),
		Longitude:  float64(p.Longitude),
		Accuracy:   int(p.Accuracy),
		DateTaken:  taken,
		DateUpload: p.UploadTime(),
		Views:      int(p.Views),
		Tags:       p.Tags,
	}, nil
}

// Header returns the CSV column names, in row order
func Header() []string {
	return []string{
		"id", "owner", "ownername", "title",
		"latitude", "longitude", "accuracy",
		"datetaken", "year", "month", "day",
		"dateupload", "views", "tags",
	}
}

// Row renders the record as CSV fields matching Header. Year, month and
// day are derived from the capture timestamp for easy grouping downstream.
func (r Record) Row() []string {
	return []string{
		r.ID,
		r.Owner,
		r.OwnerName,
		r.Title,
		strconv.FormatFloat(r.Latitude, 'f', -1, 64),
		strconv.FormatFloat(r.Longitude, 'f', -1, 64),
		strconv.Itoa(r.Accuracy),
		r.DateTaken.Format(takenLayout),
		strconv.Itoa(r.DateTaken.Year()),
		strconv.Itoa(int(r.DateTaken.Month())),
		strconv.Itoa(r.DateTaken.Day()),
		r.DateUpload.Format(takenLayout),
		strconv.Itoa(r.Views),
		r.Tags,
	}
}

// parseRow is the inverse of Row, used when merging part files
func parseRow(row []string) (Record, error) {
	lat, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return Record{}, err
	}
	lon, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return Record{}, err
	}
	accuracy, err := strconv.Atoi(row[6])
	if err != nil {
		return Record{}, err
	}
	taken, err := time.Parse(takenLayout, row[7])
	if err != nil {
		return Record{}, err
	}
	upload, err := time.Parse(takenLayout, row[11])
	if err != nil {
		return Record{}, err
	}
	views, err := strconv.Atoi(row[12])
	if err != nil {
		return Record{}, err
	}

	return Record{
		ID:         row[0],
		Owner:      row[1],
		OwnerName:  row[2],
		Title:      row[3],
		Latitude:   lat,
		Longitude:  lon,
		Accuracy:   accuracy,
		DateTaken:  taken,
		DateUpload: upload,
		Views:      views,
		Tags:       row[13],
	}, nil
}

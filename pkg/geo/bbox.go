package geo

import (
	"fmt"
	"strconv"
	"strings"

	"flickrgeo/pkg/errors"
)

// BoundingBox is a rectangular geographic region in WGS84 coordinates.
// The invariant min < max holds on both axes for a valid box.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Validate checks the box invariants
func (b BoundingBox) Validate() error {
	if b.MinLon >= b.MaxLon {
		return errors.InvalidArgument("bounding box longitude min %v >= max %v", b.MinLon, b.MaxLon)
	}
	if b.MinLat >= b.MaxLat {
		return errors.InvalidArgument("bounding box latitude min %v >= max %v", b.MinLat, b.MaxLat)
	}
	return nil
}

// Width returns the longitudinal extent of the box
func (b BoundingBox) Width() float64 {
	return b.MaxLon - b.MinLon
}

// Height returns the latitudinal extent of the box
func (b BoundingBox) Height() float64 {
	return b.MaxLat - b.MinLat
}

// String renders the box in the comma-separated form the Flickr search API
// expects for its bbox parameter: "minlon,minlat,maxlon,maxlat".
func (b BoundingBox) String() string {
	return fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(b.MinLon),
		formatCoord(b.MinLat),
		formatCoord(b.MaxLon),
		formatCoord(b.MaxLat),
	)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Divide partitions the box into a uniform numSeg x numSeg grid and returns
// the sub-boxes in row-major order (latitude rows outer, longitude inner).
// Each sub-box spans (max-min)/numSeg per axis; together they cover the
// parent box with no gaps and no overlaps.
//
// Adjacent cells share edges computed from the same expression, and the last
// row and column are pinned to the parent max so float drift cannot open a
// gap at the far edge.
func (b BoundingBox) Divide(numSeg int) ([]BoundingBox, error) {
	if numSeg < 1 {
		return nil, errors.InvalidArgument("num_seg must be >= 1, got %d", numSeg)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	dLon := b.Width() / float64(numSeg)
	dLat := b.Height() / float64(numSeg)

	boxes := make([]BoundingBox, 0, numSeg*numSeg)
	for j := 0; j < numSeg; j++ {
		minLat := b.MinLat + float64(j)*dLat
		maxLat := b.MinLat + float64(j+1)*dLat
		if j == numSeg-1 {
			maxLat = b.MaxLat
		}
		for i := 0; i < numSeg; i++ {
			minLon := b.MinLon + float64(i)*dLon
			maxLon := b.MinLon + float64(i+1)*dLon
			if i == numSeg-1 {
				maxLon = b.MaxLon
			}
			boxes = append(boxes, BoundingBox{
				MinLon: minLon,
				MinLat: minLat,
				MaxLon: maxLon,
				MaxLat: maxLat,
			})
		}
	}

	return boxes, nil
}

// Parse parses a bounding box from its comma-separated string form
// "minlon,minlat,maxlon,maxlat". The result is validated.
func Parse(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, errors.InvalidArgument("bounding box must have 4 comma-separated values, got %d", len(parts))
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, errors.InvalidArgument("bounding box value %q is not a number", p)
		}
		vals[i] = v
	}

	box := BoundingBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}
	if err := box.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return box, nil
}

// Package metadata reads embedded capture tags from original image bytes.
// Normalization strips EXIF data, so extraction always runs against the raw
// buffer, never the normalized copy.
package metadata

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/wph/expense-manager/internal/capture"
)

// Extract reads GPS coordinates, the capture timestamp, and the device
// make/model from embedded EXIF tags. Each tag is parsed independently and a
// failure leaves just that field absent; undecodable input yields an
// all-absent record. Extract never fails.
func Extract(data []byte) capture.CaptureMetadata {
	var meta capture.CaptureMetadata

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta
	}

	// GPS is accepted only when both coordinates resolve to numbers.
	if lat, lng, err := x.LatLong(); err == nil {
		meta.GPS = &capture.GeoPoint{Latitude: lat, Longitude: lng}
	}

	// Original-capture time wins over the file timestamp when both exist.
	if taken := tagString(x, exif.DateTimeOriginal); taken != "" {
		meta.DateTaken = taken
	} else {
		meta.DateTaken = tagString(x, exif.DateTime)
	}

	meta.CameraMake = tagString(x, exif.Make)
	meta.CameraModel = tagString(x, exif.Model)

	return meta
}

func tagString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	value, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return value
}

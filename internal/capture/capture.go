package capture

// RawImage is a photographed receipt exactly as the capture source handed it
// over: opaque bytes plus the declared content type.
type RawImage struct {
	Data        []byte
	ContentType string
}

// NormalizedImage is the size-bounded copy of a raw image produced for
// persistent storage. When every compression tier fails it carries the raw
// bytes unchanged.
type NormalizedImage struct {
	Data   []byte
	Width  int
	Height int
}

// Size returns the encoded byte size of the image.
func (n NormalizedImage) Size() int {
	return len(n.Data)
}

// GeoPoint is a geographic coordinate (WGS 84).
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CaptureMetadata holds whatever embedded capture tags could be read from the
// original image bytes. Every field is independently optional; the zero value
// means the tag was missing or unreadable.
type CaptureMetadata struct {
	GPS         *GeoPoint `json:"gps,omitempty"`
	DateTaken   string    `json:"date_taken,omitempty"`
	CameraMake  string    `json:"camera_make,omitempty"`
	CameraModel string    `json:"camera_model,omitempty"`
}

// RecognitionResult is the single response from a recognition worker: either
// recognized text with a confidence score, or a failure description. Success
// discriminates the two shapes. Confidence is scaled 0-100.
type RecognitionResult struct {
	Success    bool     `json:"success"`
	Text       string   `json:"text,omitempty"`
	Lines      []string `json:"lines,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// ParsedFields holds the best-guess structured fields extracted from
// recognized text. A missing field is expected behavior, not an error.
type ParsedFields struct {
	Amount       *float64 `json:"amount,omitempty"`
	Date         string   `json:"date,omitempty"`
	MerchantName string   `json:"merchant_name,omitempty"`
}

// ExtractionResult is the one structure the pipeline returns per capture
// event. Every field other than Image may be absent where a stage degraded.
// GPS is the point the location branch actually used, whether it came from
// embedded metadata or a live fix.
type ExtractionResult struct {
	Image       NormalizedImage
	Metadata    CaptureMetadata
	Location    string
	GPS         *GeoPoint
	Recognition RecognitionResult
	Fields      ParsedFields
}

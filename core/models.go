package core

import (
	"encoding/hex"
	"math"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is assigned by the storage backend on insert and never changes.
type ID uint64

// ContentChecksum computes the BLAKE2b-64 digest of data, hex encoded.
// Identical bytes always produce the same checksum, so re-uploads of the
// same image are detectable without comparing file contents.
func ContentChecksum(data []byte) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ParseID parses a decimal string into an ID. Used by CLI and transport
// boundaries that receive ids as text.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

// String returns the decimal representation of the ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Location is a geographic point in WGS84 coordinates.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

const earthRadiusKM = 6371.0

// DistanceKM returns the great-circle distance to another point in
// kilometers, computed with the haversine formula.
func (l Location) DistanceKM(other Location) float64 {
	lat1 := l.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - l.Latitude) * math.Pi / 180
	dLon := (other.Longitude - l.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Modality selects which embedding of an asset a similarity query ranks on.
type Modality int

const (
	// ModalityText ranks on the text embedding derived from name and description.
	ModalityText Modality = iota + 1
	// ModalityImage ranks on the embedding of the most recently tagged upload.
	ModalityImage
)

// ImageRecord describes one uploaded image attached to an asset.
// Records keep insertion order; the position in Asset.Images is the
// index used for removal.
type ImageRecord struct {
	URL         string    `json:"url"`
	Filename    string    `json:"filename"` // original filename as declared by the uploader
	Caption     string    `json:"caption,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentType string    `json:"content_type"`
	Checksum    string    `json:"checksum"` // BLAKE2b-64 digest of the image bytes, hex encoded
}

// Asset is the unit of record: a disaster-relief location with text
// fields, an optional geographic point, embeddings, tags and images.
type Asset struct {
	Id             ID             `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Address        string         `json:"address"`
	Category       string         `json:"category"`
	Location       *Location      `json:"location,omitempty"` // nil when geocoding failed or no address given
	TextEmbedding  []float32      `json:"-"`
	ImageEmbedding []float32      `json:"-"` // from the most recent auto-tagged upload, nil until one exists
	Tags           []string       `json:"tags,omitempty"`     // set semantics, first-seen order
	Images         []ImageRecord  `json:"images,omitempty"`   // insertion order
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewAsset is the raw ingestion input before geocoding and embedding.
type NewAsset struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Address     string         `json:"address"`
	Category    string         `json:"category"`
	Metadata    map[string]any `json:"metadata"`
}

// Match is one similarity query result.
type Match struct {
	Asset *Asset  `json:"asset"`
	Score float64 `json:"score"` // cosine similarity, 1 - cosine distance
}

// ImageCounts reports the state of an asset's attachments after an
// image append.
type ImageCounts struct {
	Id         ID  `json:"id"`
	ImageCount int `json:"image_count"`
	TagCount   int `json:"tag_count"`
}

// AssetImages is the image-listing view of an asset.
type AssetImages struct {
	Id     ID            `json:"id"`
	Name   string        `json:"name"`
	Images []ImageRecord `json:"images"`
	Tags   []string      `json:"tags"`
}

// StoreStats summarizes the contents of an asset store.
type StoreStats struct {
	TotalAssets  int            `json:"total_assets"`
	ByCategory   map[string]int `json:"by_category"`
	WithImages   int            `json:"with_images"`
	WithLocation int            `json:"with_location"`
	UniqueTags   int            `json:"unique_tags"`
}

package favorites

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/i-Rony/WeatherBoard/internal/models"
	"github.com/i-Rony/WeatherBoard/internal/remote"
)

// Metadata is the typed form of a favorite record's opaque metadata string.
// Pointer fields distinguish "absent" from zero; records written by older
// clients may lack geodata entirely.
type Metadata struct {
	WeatherID   *int     `json:"weatherId,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	Country     string   `json:"country,omitempty"`
	Temperature int      `json:"temperature,omitempty"`
	Conditions  string   `json:"conditions,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Description string   `json:"description,omitempty"`
	Humidity    int      `json:"humidity,omitempty"`
	WindSpeed   float64  `json:"windSpeed,omitempty"`
	Timezone    int      `json:"timezone,omitempty"`
	Sunrise     int64    `json:"sunrise,omitempty"`
	Sunset      int64    `json:"sunset,omitempty"`
	Deleted     bool     `json:"deleted,omitempty"`
	DeletedAt   string   `json:"deletedAt,omitempty"`
}

// content is the JSON-serialized display summary stored in a record's
// content field.
type content struct {
	Name        string `json:"name"`
	Temperature int    `json:"temperature"`
	Conditions  string `json:"conditions"`
	Icon        string `json:"icon"`
}

// liveMetadata decodes an item's metadata and applies the soft-delete
// predicate. ok is false for soft-deleted records, empty content, and
// metadata that fails to parse (fail-closed).
func liveMetadata(item remote.Item) (Metadata, bool) {
	if item.Content == "" {
		return Metadata{}, false
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(item.Metadata), &meta); err != nil {
		return Metadata{}, false
	}
	if meta.Deleted {
		return Metadata{}, false
	}
	return meta, true
}

// compositeKey is the reconciliation identity: lowercase(name) joined with
// the record's weatherId, defaulting to 0 when absent.
func compositeKey(name string, meta Metadata) string {
	id := 0
	if meta.WeatherID != nil {
		id = *meta.WeatherID
	}
	return strings.ToLower(name) + "-" + strconv.Itoa(id)
}

// geodata builds a City from a record's metadata when both coordinates are
// present and well-formed.
func geodata(name string, meta Metadata) (models.City, bool) {
	if meta.Lat == nil || meta.Lon == nil {
		return models.City{}, false
	}
	return models.City{
		Name:    name,
		Lat:     *meta.Lat,
		Lon:     *meta.Lon,
		Country: meta.Country,
	}, true
}

// encodeFavorite builds the upsert input for a favorite carrying snap.
// An empty id means insert; a present id preserves the existing record.
func encodeFavorite(id string, snap *models.WeatherSnapshot) (remote.ItemInput, error) {
	wid := snap.WeatherID
	lat := snap.City.Lat
	lon := snap.City.Lon
	meta := Metadata{
		WeatherID:   &wid,
		Lat:         &lat,
		Lon:         &lon,
		Country:     snap.City.Country,
		Temperature: snap.Temperature,
		Conditions:  snap.Conditions,
		Icon:        snap.Icon,
		Description: snap.Description,
		Humidity:    snap.Humidity,
		WindSpeed:   snap.WindSpeed,
		Timezone:    snap.Timezone,
		Sunrise:     snap.Sunrise,
		Sunset:      snap.Sunset,
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return remote.ItemInput{}, err
	}
	contentRaw, err := json.Marshal(content{
		Name:        snap.City.Name,
		Temperature: snap.Temperature,
		Conditions:  snap.Conditions,
		Icon:        snap.Icon,
	})
	if err != nil {
		return remote.ItemInput{}, err
	}
	return remote.ItemInput{
		ID:       id,
		Name:     snap.City.Name,
		Content:  string(contentRaw),
		Metadata: string(metaRaw),
	}, nil
}

// encodeTombstone rewrites an existing record as soft-deleted: empty content,
// deleted flag and timestamp set, identifying fields kept for later cleanup.
func encodeTombstone(item remote.Item, meta Metadata, deletedAt time.Time) (remote.ItemInput, error) {
	meta.Deleted = true
	meta.DeletedAt = deletedAt.UTC().Format(time.RFC3339)
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return remote.ItemInput{}, err
	}
	return remote.ItemInput{
		ID:       item.ID,
		Name:     item.Name,
		Content:  "",
		Metadata: string(metaRaw),
	}, nil
}

package city

import (
	"errors"
	"sort"
	"strings"

	"github.com/ichiro17/CwaWeather-backend/internal/models"
)

// ErrUnknownCity is returned when a key does not match any supported city.
// Maps to 400 UNSUPPORTED_CITY at the HTTP boundary.
var ErrUnknownCity = errors.New("unsupported city")

// entries is the fixed city set. Loaded at startup, never mutated.
var entries = map[string]models.CityEntry{
	"taipei":    {Key: "taipei", Name: "臺北市"},
	"newtaipei": {Key: "newtaipei", Name: "新北市"},
	"taoyuan":   {Key: "taoyuan", Name: "桃園市"},
	"taichung":  {Key: "taichung", Name: "臺中市"},
	"tainan":    {Key: "tainan", Name: "臺南市"},
	"kaohsiung": {Key: "kaohsiung", Name: "高雄市"},
}

// Resolve looks up a city key case-insensitively, trimming surrounding
// whitespace. Returns ErrUnknownCity when the key is not in the fixed set.
func Resolve(key string) (models.CityEntry, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	entry, ok := entries[k]
	if !ok {
		return models.CityEntry{}, ErrUnknownCity
	}
	return entry, nil
}

// Keys returns the supported city keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

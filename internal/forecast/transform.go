package forecast

import (
	"errors"
	"time"

	"github.com/ichiro17/CwaWeather-backend/internal/client"
	"github.com/ichiro17/CwaWeather-backend/internal/models"
)

// ErrNoElements is returned when a location carries no weather elements at
// all; the period count cannot be derived from an empty element list.
var ErrNoElements = errors.New("location has no weather elements")

// elementFields maps upstream element codes to ForecastPeriod field setters.
// Codes outside this table are ignored.
var elementFields = map[string]func(*models.ForecastPeriod, string){
	"Wx":   func(p *models.ForecastPeriod, v string) { p.Weather = v },
	"PoP":  func(p *models.ForecastPeriod, v string) { p.Rain = v },
	"MinT": func(p *models.ForecastPeriod, v string) { p.MinTemp = v },
	"MaxT": func(p *models.ForecastPeriod, v string) { p.MaxTemp = v },
	"CI":   func(p *models.ForecastPeriod, v string) { p.Comfort = v },
	"WS":   func(p *models.ForecastPeriod, v string) { p.WindSpeed = v },
}

// Build flattens one upstream location record into a ForecastResult. The
// period count is the length of the first element's time series; periods
// keep that order. Every element checks its own bounds at each index, so a
// shorter series leaves its fields empty for the trailing periods instead
// of reading out of range. capturedAt stamps UpdateTime; equal inputs
// produce identical results.
func Build(loc client.Location, cityKey string, capturedAt time.Time) (models.ForecastResult, error) {
	if len(loc.WeatherElement) == 0 {
		return models.ForecastResult{}, ErrNoElements
	}

	first := loc.WeatherElement[0].Time
	periods := make([]models.ForecastPeriod, 0, len(first))
	for i := range first {
		period := models.ForecastPeriod{
			StartTime: first[i].StartTime,
			EndTime:   first[i].EndTime,
		}
		for _, el := range loc.WeatherElement {
			set, known := elementFields[el.ElementName]
			if !known || i >= len(el.Time) {
				continue
			}
			set(&period, el.Time[i].Parameter.ParameterName)
		}
		periods = append(periods, period)
	}

	return models.ForecastResult{
		City:       loc.LocationName,
		CityKey:    cityKey,
		UpdateTime: capturedAt.UTC().Format(time.RFC3339),
		Forecasts:  periods,
	}, nil
}

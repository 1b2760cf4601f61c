package snapshot

import "time"

// Data is the exported schema served on /data, streamed over websocket and
// published on MQTT. Environment-derived values are null when the sensor
// did not deliver a reading in that cycle.
type Data struct {
	Mode   string   `json:"mode"`
	Status string   `json:"status"`
	Temp   *float64 `json:"temp"`
	Hum    *float64 `json:"hum"`
	Dew    *float64 `json:"dew"`
	Pres   *float64 `json:"pres"`

	WindAvg float64 `json:"w_avg"`
	WindGst float64 `json:"w_gst"`
	WindDir string  `json:"w_dir"`
	Rain    float64 `json:"rain"`

	A20  *float64 `json:"a20"`
	A40  *float64 `json:"a40"`
	A55  *float64 `json:"a55"`
	A80  *float64 `json:"a80"`
	A110 *float64 `json:"a110"`

	GPSValid   bool    `json:"gps_v"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Alt        float64 `json:"alt"`
	Satellites int64   `json:"sats"`

	Synced     bool   `json:"synced"`
	CloudCover int    `json:"cloud"`
	RunID      string `json:"run"`
	Seq        uint64 `json:"seq"`
	Time       string `json:"time"`
}

func ptr(v float64) *float64 { return &v }

// Data converts the snapshot into the exported schema.
func (s Snapshot) Data() Data {
	d := Data{
		Mode:       s.Operator.ModeLabel(),
		Status:     s.Status(),
		WindAvg:    s.Wind.Average,
		WindGst:    s.Wind.Gust,
		WindDir:    s.Wind.Direction,
		Rain:       s.RainMM,
		GPSValid:   s.Location.Valid,
		Lat:        s.Location.Latitude,
		Lon:        s.Location.Longitude,
		Alt:        s.Location.Altitude,
		Satellites: s.Location.Satellites,
		Synced:     s.TimeSynced,
		CloudCover: s.Operator.CloudCover,
		RunID:      s.RunID,
		Seq:        s.Seq,
		Time:       s.Taken.Format(time.RFC3339),
	}
	if d.WindDir == "" {
		d.WindDir = NoWindDirection
	}

	if s.HasEnvironment {
		d.Temp = ptr(s.Environment.Temperature)
		d.Hum = ptr(s.Environment.Humidity)
		d.Pres = ptr(s.Environment.Pressure)

		for _, b := range []struct {
			freqHz float64
			field  **float64
		}{{20e3, &d.A20}, {40e3, &d.A40}, {55e3, &d.A55}, {80e3, &d.A80}, {110e3, &d.A110}} {
			if v, ok := s.Attenuation.At(b.freqHz); ok {
				*b.field = ptr(v)
			}
		}
	}
	if s.HasDewPoint {
		d.Dew = ptr(s.DewPoint)
	}
	return d
}

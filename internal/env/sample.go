package env

// Reading represents a single environmental measurement (BME280 class
// sensor). All three values come from the same poll.
type Reading struct {
	Temperature float64 `json:"temp_c"`       // °C
	Humidity    float64 `json:"humidity_pct"` // % rh
	Pressure    float64 `json:"pressure_hpa"` // hPa
}

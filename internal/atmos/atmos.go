// Package atmos holds the atmospheric model used by the station: dew point
// and ISO 9613-1 sound absorption.
package atmos

import (
	"math"

	"github.com/relabs-tech/bat_weather/internal/env"
)

// Magnus coefficients (Alduchov & Eskridge).
const (
	magnusB = 17.625
	magnusC = 243.04
)

// ISO 9613-1 reference conditions.
const (
	refTemperatureK    = 293.15  // T0
	triplePointK       = 273.16  // T01
	refPressureHPa     = 1013.25 // pr
	celsiusToKelvin    = 273.15
	nepersToDecibels   = 8.685889638065035 // 20·log10(e)
	classicalAbsorp    = 1.84e-11
	oxygenAbsorp       = 0.01275
	nitrogenAbsorp     = 0.1068
	oxygenVibrationalK = 2239.1
	nitrogenVibrationK = 3352.0
)

// DewPoint returns the dew point in °C for a temperature in °C and a
// relative humidity in percent. rhPct must be > 0.
func DewPoint(tempC, rhPct float64) float64 {
	g := math.Log(rhPct/100.0) + magnusB*tempC/(magnusC+tempC)
	return magnusC * g / (magnusB - g)
}

// Attenuation returns the atmospheric absorption coefficient in dB/m for a
// pure tone at freqHz (ISO 9613-1, annex B equations).
//
// Valid for -20..50 °C, 800..1100 hPa and 1..150 kHz; inputs outside that
// envelope are not clamped.
func Attenuation(freqHz, tempC, rhPct, pressureHPa float64) float64 {
	t := tempC + celsiusToKelvin
	pa := pressureHPa / refPressureHPa
	tr := t / refTemperatureK

	// saturation vapour pressure relative to pr
	psat := math.Pow(10, -6.8346*math.Pow(triplePointK/t, 1.261)+4.6151)
	// molar concentration of water vapour, %
	h := rhPct * psat / pa

	frO := pa * (24.0 + 4.04e4*h*(0.02+h)/(0.391+h))
	frN := pa * math.Pow(tr, -0.5) * (9.0 + 280.0*h*math.Exp(-4.170*(math.Pow(tr, -1.0/3.0)-1.0)))

	f2 := freqHz * freqHz
	alpha := f2 * (classicalAbsorp/pa*math.Sqrt(tr) +
		math.Pow(tr, -2.5)*(oxygenAbsorp*math.Exp(-oxygenVibrationalK/t)/(frO+f2/frO)+
			nitrogenAbsorp*math.Exp(-nitrogenVibrationK/t)/(frN+f2/frN)))

	return alpha * nepersToDecibels
}

// Frequencies are the bands reported with every snapshot, in Hz. They
// cover the call range of the European bat species the station is used
// for.
var Frequencies = [5]float64{20e3, 40e3, 55e3, 80e3, 110e3}

// Band is one frequency/coefficient pair.
type Band struct {
	FrequencyHz float64 `json:"freq_hz"`
	DBPerMetre  float64 `json:"db_per_m"`
}

// Set is the attenuation for every entry of Frequencies.
type Set [len(Frequencies)]Band

// Compute evaluates Attenuation for every reporting band.
func Compute(r env.Reading) Set {
	var s Set
	for i, f := range Frequencies {
		s[i] = Band{
			FrequencyHz: f,
			DBPerMetre:  Attenuation(f, r.Temperature, r.Humidity, r.Pressure),
		}
	}
	return s
}

// At returns the coefficient for freqHz and whether the band is part of
// the set.
func (s Set) At(freqHz float64) (float64, bool) {
	for _, b := range s {
		if b.FrequencyHz == freqHz {
			return b.DBPerMetre, true
		}
	}
	return 0, false
}

package snapshot

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/bat_weather/internal/atmos"
	"github.com/relabs-tech/bat_weather/internal/env"
	"github.com/relabs-tech/bat_weather/internal/gps"
	"github.com/relabs-tech/bat_weather/internal/operator"
)

func sample() Snapshot {
	r := env.Reading{Temperature: 18.5, Humidity: 64, Pressure: 1002}
	return Snapshot{
		Seq:            7,
		Taken:          time.Date(2025, time.July, 1, 21, 30, 8, 0, time.UTC),
		RunID:          "run-1",
		Interval:       8 * time.Second,
		Environment:    r,
		HasEnvironment: true,
		DewPoint:       atmos.DewPoint(r.Temperature, r.Humidity),
		HasDewPoint:    true,
		Attenuation:    atmos.Compute(r),
		Wind:           Wind{Average: 0.8335},
		RainMM:         0.8382,
		Location:       gps.Fix{Valid: true, Latitude: 48.1, Longitude: 11.5, Altitude: 520, Satellites: 9},
		Operator:       operator.Config{CloudCover: 4, Stationary: true},
		TimeSynced:     true,
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		cfg    operator.Config
		synced bool
		want   string
	}{
		{operator.Config{Stationary: true}, true, "STAT (GPS-TIME)"},
		{operator.Config{Stationary: true}, false, "STAT (RTC-MODE)"},
		{operator.Config{}, true, "MOB (GPS-TIME)"},
		{operator.Config{}, false, "MOB (RTC-MODE)"},
	}
	for _, tt := range tests {
		s := Snapshot{Operator: tt.cfg, TimeSynced: tt.synced}
		if got := s.Status(); got != tt.want {
			t.Errorf("Status() = %q, want %q", got, tt.want)
		}
	}
}

func TestData_Keys(t *testing.T) {
	b, err := json.Marshal(sample().Data())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	keys := []string{"mode", "status", "temp", "hum", "dew", "pres", "w_avg", "w_gst", "w_dir",
		"rain", "a20", "a40", "a55", "a80", "a110", "gps_v", "lat", "lon", "alt", "sats",
		"synced", "cloud", "run", "seq", "time"}
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			t.Errorf("missing key %q", k)
		}
	}
	if len(m) != len(keys) {
		t.Errorf("got %d keys, want %d", len(m), len(keys))
	}

	if m["mode"] != "STAT" || m["w_dir"] != NoWindDirection || m["gps_v"] != true {
		t.Errorf("unexpected values: %v", m)
	}
	if m["time"] != "2025-07-01T21:30:08Z" {
		t.Errorf("time = %v", m["time"])
	}
}

func TestData_Values(t *testing.T) {
	s := sample()
	d := s.Data()

	if d.Temp == nil || *d.Temp != 18.5 {
		t.Errorf("temp = %v", d.Temp)
	}
	if d.Dew == nil || *d.Dew != s.DewPoint {
		t.Errorf("dew = %v", d.Dew)
	}
	want := []*float64{d.A20, d.A40, d.A55, d.A80, d.A110}
	for i, p := range want {
		if p == nil || *p != s.Attenuation[i].DBPerMetre {
			t.Errorf("band %d = %v, want %v", i, p, s.Attenuation[i].DBPerMetre)
		}
	}
}

func TestData_BandsMatchedByFrequency(t *testing.T) {
	s := sample()
	s.Attenuation = atmos.Set{}
	s.Attenuation[4] = atmos.Band{FrequencyHz: 40e3, DBPerMetre: 1.5}

	d := s.Data()
	if d.A40 == nil || *d.A40 != 1.5 {
		t.Errorf("a40 = %v, want 1.5", d.A40)
	}
	if d.A20 != nil || d.A110 != nil {
		t.Errorf("a20/a110 = %v/%v, want null for bands not computed", d.A20, d.A110)
	}
}

func TestData_MissingEnvironmentIsNull(t *testing.T) {
	s := sample()
	s.HasEnvironment = false
	s.HasDewPoint = false

	b, err := json.Marshal(s.Data())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	json.Unmarshal(b, &m)
	for _, k := range []string{"temp", "hum", "dew", "pres", "a20", "a110"} {
		if v, ok := m[k]; !ok || v != nil {
			t.Errorf("%s = %v, want null", k, v)
		}
	}
}

func TestStore(t *testing.T) {
	var st Store
	if _, ok := st.Latest(); ok {
		t.Fatal("empty store reported a snapshot")
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if s, ok := st.Latest(); ok && s.RunID != "run-1" {
					t.Errorf("torn snapshot: %+v", s)
					return
				}
			}
		}()
	}
	for i := 0; i < 1000; i++ {
		s := sample()
		s.Seq = uint64(i)
		st.Publish(s)
	}
	wg.Wait()

	s, ok := st.Latest()
	if !ok || s.Seq != 999 {
		t.Errorf("latest = %d, %v; want 999", s.Seq, ok)
	}
}

package sampler

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/relabs-tech/bat_weather/internal/env"
	"github.com/relabs-tech/bat_weather/internal/gps"
	"github.com/relabs-tech/bat_weather/internal/logstore"
	"github.com/relabs-tech/bat_weather/internal/observability"
	"github.com/relabs-tech/bat_weather/internal/operator"
	"github.com/relabs-tech/bat_weather/internal/pulse"
	"github.com/relabs-tech/bat_weather/internal/snapshot"
)

var t0 = time.Date(2025, time.June, 14, 21, 0, 0, 0, time.UTC)

type fakeEnv struct {
	r     env.Reading
	err   error
	polls int
}

func (f *fakeEnv) Poll() (env.Reading, error) {
	f.polls++
	return f.r, f.err
}

type fixedFix gps.Fix

func (f fixedFix) CurrentFix() gps.Fix { return gps.Fix(f) }

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

type extras struct{}

func (extras) Wind() (float64, string) { return 3.4, "NW" }

type rig struct {
	s    *Sampler
	env  *fakeEnv
	wind *pulse.Counter
	rain *pulse.Counter
	mono time.Time
}

func newRig(t *testing.T, m *observability.Metrics) *rig {
	t.Helper()
	r := &rig{
		env:  &fakeEnv{r: env.Reading{Temperature: 20, Humidity: 50, Pressure: 1013.25}},
		wind: pulse.NewCounter("wind", pulse.WindDebounce, t0),
		rain: pulse.NewCounter("rain", pulse.RainDebounce, t0),
		mono: t0,
	}
	r.s = New(Options{
		Env:       r.env,
		Wind:      r.wind,
		Rain:      r.rain,
		Fix:       fixedFix{Valid: true, Latitude: 48.1, Longitude: 11.5},
		Clock:     fixedClock(t0.Add(time.Hour)),
		Metrics:   m,
		Monotonic: func() time.Time { return r.mono },
	})
	return r
}

func TestCycle_WindAverage(t *testing.T) {
	r := newRig(t, nil)
	r.s.Start(t0)

	for i := 0; i < 10; i++ {
		if !r.wind.RecordEdge(t0.Add(time.Duration(i+1) * 500 * time.Millisecond)) {
			t.Fatalf("edge %d rejected", i)
		}
	}
	end := t0.Add(8000 * time.Millisecond)
	r.mono = end
	snap := r.s.Cycle(end, operator.Config{Stationary: true}, true, "run")

	want := 10 / 8.0 * 0.6667
	if math.Abs(snap.Wind.Average-want) > 1e-9 {
		t.Errorf("wind average = %v, want %v", snap.Wind.Average, want)
	}
	if math.Abs(snap.Wind.Average-0.833) > 0.001 {
		t.Errorf("wind average = %v, want ≈0.833", snap.Wind.Average)
	}
	if snap.WindTicks != 10 || snap.Interval != 8*time.Second {
		t.Errorf("ticks/interval = %d/%v", snap.WindTicks, snap.Interval)
	}
}

func TestCycle_RainAccumulation(t *testing.T) {
	r := newRig(t, nil)
	r.s.Start(t0)

	for i := 0; i < 3; i++ {
		r.rain.RecordEdge(t0.Add(time.Duration(i+1) * time.Second))
	}
	snap := r.s.Cycle(t0.Add(8*time.Second), operator.Config{}, false, "run")

	if math.Abs(snap.RainMM-0.8382) > 1e-9 {
		t.Errorf("rain = %v, want 0.8382", snap.RainMM)
	}
	if snap.RainTips != 3 {
		t.Errorf("tips = %d", snap.RainTips)
	}
}

func TestCycle_AssemblesSnapshot(t *testing.T) {
	r := newRig(t, nil)
	r.s.opts.Extras = extras{}
	r.s.Start(t0)

	cfg := operator.Config{CloudCover: 3, Stationary: true}
	first := r.s.Cycle(t0.Add(8*time.Second), cfg, true, "run-42")
	second := r.s.Cycle(t0.Add(16*time.Second), cfg, true, "run-42")

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("seq = %d, %d", first.Seq, second.Seq)
	}
	if !first.HasEnvironment || !first.HasDewPoint {
		t.Fatal("environment missing")
	}
	if first.Attenuation[0].FrequencyHz != 20e3 || first.Attenuation[0].DBPerMetre <= 0 {
		t.Errorf("attenuation = %+v", first.Attenuation[0])
	}
	if !first.Taken.Equal(t0.Add(time.Hour)) {
		t.Errorf("taken = %v", first.Taken)
	}
	if first.Wind.Gust != 3.4 || first.Wind.Direction != "NW" {
		t.Errorf("wind extras = %+v", first.Wind)
	}
	if !first.Location.Valid || first.Operator != cfg || first.RunID != "run-42" || !first.TimeSynced {
		t.Errorf("snapshot = %+v", first)
	}
	if first.Status() != "STAT (GPS-TIME)" {
		t.Errorf("status = %q", first.Status())
	}
}

func TestCycle_EnvFailureLeavesEnvironmentAbsent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	r := newRig(t, m)
	r.env.err = errors.New("i2c nack")
	r.s.Start(t0)

	snap := r.s.Cycle(t0.Add(8*time.Second), operator.Config{}, false, "run")
	if snap.HasEnvironment || snap.HasDewPoint {
		t.Errorf("environment present after failed poll: %+v", snap)
	}
	if r.env.polls != 1 {
		t.Errorf("polls = %d, want exactly one attempt", r.env.polls)
	}
	if got := testutil.ToFloat64(m.EnvPollFailures); got != 1 {
		t.Errorf("env failures = %v", got)
	}
	if got := testutil.ToFloat64(m.Cycles); got != 1 {
		t.Errorf("cycles = %v", got)
	}
}

func TestCycle_ZeroHumidityHasNoDewPoint(t *testing.T) {
	r := newRig(t, nil)
	r.env.r.Humidity = 0
	r.s.Start(t0)

	snap := r.s.Cycle(t0.Add(8*time.Second), operator.Config{}, false, "run")
	if !snap.HasEnvironment || snap.HasDewPoint {
		t.Errorf("HasEnvironment=%v HasDewPoint=%v", snap.HasEnvironment, snap.HasDewPoint)
	}
}

func TestCycle_NoSensorAtBoot(t *testing.T) {
	r := newRig(t, nil)
	r.s.opts.Env = nil
	r.s.Start(t0)

	snap := r.s.Cycle(t0.Add(8*time.Second), operator.Config{}, false, "run")
	if snap.HasEnvironment {
		t.Error("environment present without a sensor")
	}
	if snap.Wind.Direction != snapshot.NoWindDirection {
		t.Errorf("direction = %q", snap.Wind.Direction)
	}
}

func TestDue(t *testing.T) {
	r := newRig(t, nil)
	if r.s.Due(t0.Add(time.Hour)) {
		t.Fatal("due before Start")
	}
	r.s.Start(t0)
	if r.s.Due(t0.Add(7999 * time.Millisecond)) {
		t.Error("due before the interval elapsed")
	}
	if !r.s.Due(t0.Add(8000 * time.Millisecond)) {
		t.Error("not due at the interval")
	}

	// the next interval is measured from the end of the cycle
	r.mono = t0.Add(8300 * time.Millisecond)
	r.s.Cycle(t0.Add(8000*time.Millisecond), operator.Config{}, false, "run")
	if r.s.Due(t0.Add(16000 * time.Millisecond)) {
		t.Error("due before a full interval after the cycle end")
	}
	if !r.s.Due(t0.Add(16300 * time.Millisecond)) {
		t.Error("not due a full interval after the cycle end")
	}
}

func TestStart_DiscardsEarlierEdges(t *testing.T) {
	r := newRig(t, nil)
	r.wind.RecordEdge(t0.Add(-time.Second))
	r.rain.RecordEdge(t0.Add(-time.Second))
	r.s.Start(t0)

	snap := r.s.Cycle(t0.Add(8*time.Second), operator.Config{}, false, "run")
	if snap.WindTicks != 0 || snap.RainTips != 0 {
		t.Errorf("ticks=%d tips=%d, want 0", snap.WindTicks, snap.RainTips)
	}
}

func TestCycle_AppendsToRunLog(t *testing.T) {
	dir := t.TempDir()
	medium, err := logstore.OpenSQLite(filepath.Join(dir, "log.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer medium.Close()
	run, err := logstore.OpenRun(medium, t0)
	if err != nil {
		t.Fatal(err)
	}

	r := newRig(t, nil)
	r.s.SetRun(run)
	r.s.Start(t0)
	snap := r.s.Cycle(t0.Add(8*time.Second), operator.Config{}, false, "run")

	lines, err := medium.Lines(run.Name())
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[1] != logstore.Record(snap) {
		t.Errorf("lines = %q", lines)
	}
}

func TestWindSpeed_ZeroInterval(t *testing.T) {
	if got := WindSpeed(5, 0); got != 0 {
		t.Errorf("WindSpeed(5, 0) = %v", got)
	}
}

package app

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/bat_weather/internal/snapshot"
)

type fakeToken struct {
	completes bool
	err       error
}

func (t *fakeToken) Wait() bool                     { return t.completes }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.completes }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.completes {
		close(ch)
	}
	return ch
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	sent  []published
	token *fakeToken
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return c.token
}

func TestPublisher_Export(t *testing.T) {
	c := &fakeClient{token: &fakeToken{completes: true}}
	p := NewPublisher(c, "bw/snap", "bw/status", 10*time.Millisecond, discardLogger())

	if err := p.Export(testSnapshot(4), "STAT (GPS-TIME)"); err != nil {
		t.Fatalf("Export = %v", err)
	}
	if len(c.sent) != 2 {
		t.Fatalf("published %d messages, want 2", len(c.sent))
	}

	snap, status := c.sent[0], c.sent[1]
	if snap.topic != "bw/snap" || !snap.retained {
		t.Errorf("snapshot message = %+v", snap)
	}
	var d snapshot.Data
	if err := json.Unmarshal(snap.payload, &d); err != nil {
		t.Fatal(err)
	}
	if d.Seq != 4 || d.Temp == nil || *d.Temp != 12.5 {
		t.Errorf("payload = %+v", d)
	}

	if status.topic != "bw/status" || !status.retained || string(status.payload) != "STAT (GPS-TIME)" {
		t.Errorf("status message = %+v", status)
	}
}

func TestPublisher_TimeoutIsBounded(t *testing.T) {
	c := &fakeClient{token: &fakeToken{completes: false}}
	p := NewPublisher(c, "bw/snap", "bw/status", time.Millisecond, discardLogger())

	err := p.Export(testSnapshot(1), "MOB (RTC-MODE)")
	if !errors.Is(err, ErrPublishTimeout) {
		t.Fatalf("Export = %v, want ErrPublishTimeout", err)
	}
	if len(c.sent) != 1 {
		t.Errorf("status published after a timed out snapshot")
	}
}

func TestPublisher_BrokerError(t *testing.T) {
	brokerErr := errors.New("not connected")
	c := &fakeClient{token: &fakeToken{completes: true, err: brokerErr}}
	p := NewPublisher(c, "bw/snap", "bw/status", time.Millisecond, nil)

	if err := p.Export(testSnapshot(1), ""); !errors.Is(err, brokerErr) {
		t.Fatalf("Export = %v, want broker error", err)
	}
}

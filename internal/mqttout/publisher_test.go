package mqttout

import (
	"bytes"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type fakeToken struct {
	done    bool
	err     error
	waitHit int
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { t.waitHit++; return t.done }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	pubs         []published
	token        *fakeToken
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.pubs = append(c.pubs, published{topic, qos, retained, payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestPublisher_SendCopiesPayload(t *testing.T) {
	fc := &fakeClient{token: &fakeToken{done: true}}
	p := newPublisher(fc, Config{Topic: "gps/ubx", QoS: 0, Retained: true, Timeout: time.Second})

	pkt := []byte{0xB5, 0x62, 0x01, 0x07}
	if err := p.Send(pkt); err != nil {
		t.Fatalf("Send: %v", err)
	}
	pkt[0] = 0
	if len(fc.pubs) != 1 || fc.pubs[0].topic != "gps/ubx" || !fc.pubs[0].retained {
		t.Fatalf("pubs=%+v", fc.pubs)
	}
	if !bytes.Equal(fc.pubs[0].payload, []byte{0xB5, 0x62, 0x01, 0x07}) {
		t.Fatalf("payload aliased caller buffer: % X", fc.pubs[0].payload)
	}
	if fc.token.waitHit != 0 {
		t.Fatalf("qos 0 should not wait")
	}
	if p.Name() != "mqtt:gps/ubx" {
		t.Fatalf("name=%q", p.Name())
	}
}

func TestPublisher_SendQoS1Errors(t *testing.T) {
	boom := errors.New("not authorized")
	fc := &fakeClient{token: &fakeToken{done: true, err: boom}}
	p := newPublisher(fc, Config{Topic: "t", QoS: 1, Timeout: time.Second})
	if err := p.Send([]byte{1}); !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}

	fc.token = &fakeToken{done: false}
	if err := p.Send([]byte{1}); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestPublisher_Close(t *testing.T) {
	fc := &fakeClient{token: &fakeToken{done: true}}
	p := newPublisher(fc, Config{Topic: "t"})
	if err := p.Close(); err != nil || !fc.disconnected {
		t.Fatalf("Close err=%v disconnected=%v", err, fc.disconnected)
	}
}

func TestConnect_Validates(t *testing.T) {
	if _, err := Connect(Config{Topic: "t"}); err == nil {
		t.Fatalf("expected broker error")
	}
	if _, err := Connect(Config{Broker: "tcp://127.0.0.1:1883"}); err == nil {
		t.Fatalf("expected topic error")
	}
}

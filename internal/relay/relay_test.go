package relay

import (
	"errors"
	"sync"
	"testing"

	"github.com/rickgao/livefeed/internal/config"
	"github.com/rickgao/livefeed/internal/decode"
)

type published struct {
	subject string
	data    string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{subject, string(data)})
	return nil
}

func event(fields map[string]any, raw string) decode.Event {
	return decode.Event{Fields: fields, Raw: []byte(raw)}
}

func TestRelay_Subject(t *testing.T) {
	r, err := New(&fakePublisher{}, "livefeed", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{"symbol", map[string]any{"symbol": "BTC"}, "livefeed.BTC"},
		{"no symbol", map[string]any{"type": "heartbeat"}, "livefeed.event"},
		{"non-string symbol", map[string]any{"symbol": 42.0}, "livefeed.event"},
		{"dotted symbol", map[string]any{"symbol": "BTC.USD"}, "livefeed.BTC_USD"},
		{"wildcards", map[string]any{"symbol": "a*b>c"}, "livefeed.a_b_c"},
		{"whitespace", map[string]any{"symbol": " ETH USD "}, "livefeed.ETH_USD"},
		{"blank symbol", map[string]any{"symbol": "   "}, "livefeed.event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Subject(event(tt.fields, "{}")); got != tt.want {
				t.Errorf("Subject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelay_HandleEventPublishesRawFrame(t *testing.T) {
	pub := &fakePublisher{}
	r, _ := New(pub, "feeds.prod", nil)

	raw := `{"symbol":"BTC","price":50000}`
	r.HandleEvent(event(map[string]any{"symbol": "BTC", "price": 50000.0}, raw))

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	if pub.msgs[0].subject != "feeds.prod.BTC" {
		t.Errorf("subject = %q, want feeds.prod.BTC", pub.msgs[0].subject)
	}
	if pub.msgs[0].data != raw {
		t.Errorf("data = %q, want %q", pub.msgs[0].data, raw)
	}
	if s := r.Stats(); s.Published != 1 || s.Failed != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestRelay_PublishFailureCounted(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	r, _ := New(pub, "livefeed", nil)

	r.HandleEvent(event(map[string]any{"symbol": "BTC"}, "{}"))

	if s := r.Stats(); s.Published != 0 || s.Failed != 1 {
		t.Errorf("Stats() = %+v, want 1 failure", s)
	}
}

func TestValidatePrefix(t *testing.T) {
	tests := []struct {
		prefix  string
		wantErr bool
	}{
		{"livefeed", false},
		{"feeds.prod", false},
		{"", true},
		{"feeds.*", true},
		{"feeds.>", true},
		{"has space", true},
		{"feeds..prod", true},
		{".feeds", true},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			err := ValidatePrefix(tt.prefix)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePrefix(%q) error = %v, wantErr %v", tt.prefix, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPrefix) {
				t.Errorf("error %v does not wrap ErrInvalidPrefix", err)
			}
		})
	}
}

func TestNew_RejectsBadPrefix(t *testing.T) {
	if _, err := New(&fakePublisher{}, "a.*", nil); !errors.Is(err, ErrInvalidPrefix) {
		t.Errorf("New() error = %v, want ErrInvalidPrefix", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(config.RelayConfig{
		Enabled:       true,
		URL:           "nats://127.0.0.1:1",
		SubjectPrefix: "livefeed",
	}, nil)
	if err == nil {
		t.Fatal("Connect() to closed port should fail")
	}
}

func TestConnect_InvalidPrefix(t *testing.T) {
	_, err := Connect(config.RelayConfig{
		Enabled:       true,
		URL:           "nats://127.0.0.1:1",
		SubjectPrefix: "feeds..prod",
	}, nil)
	if !errors.Is(err, ErrInvalidPrefix) {
		t.Errorf("Connect() error = %v, want ErrInvalidPrefix", err)
	}
}

func TestRelay_CloseWithoutConnection(t *testing.T) {
	r, _ := New(&fakePublisher{}, "livefeed", nil)
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

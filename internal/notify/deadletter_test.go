package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"monay-auth/internal/domain"
)

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafka.Message
	committed int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed += len(msgs)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestKafkaDeadLetterPublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaDeadLetter{writer: w, logger: zap.NewNop()}

	letter := DeadLetter{Message: Message{ID: "m1", Channel: domain.ChannelMobile, To: "+1", Text: "x"}, Error: "boom", Attempts: 3}
	if err := sink.Publish(context.Background(), letter); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "m1" {
		t.Fatalf("unexpected messages: %+v", w.msgs)
	}
	var decoded DeadLetter
	if err := json.Unmarshal(w.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Message.To != "+1" || decoded.Attempts != 3 {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestNewKafkaDeadLetterValidates(t *testing.T) {
	if _, err := NewKafkaDeadLetter(nil, "t", nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewKafkaDeadLetter([]string{"localhost:9092"}, "", nil); err == nil {
		t.Fatalf("expected error without topic")
	}
}

type recordingReissuer struct {
	got  []Message
	fail error
}

func (r *recordingReissuer) Reissue(_ context.Context, msg Message) error {
	r.got = append(r.got, msg)
	return r.fail
}

func TestReplayerReissuesAndCommits(t *testing.T) {
	reissuer := &recordingReissuer{}
	payload, _ := json.Marshal(DeadLetter{Message: Message{ID: "m1", AccountID: "acc-1", Kind: KindSignup, Channel: domain.ChannelMobile, To: "+15550001"}})
	reader := &fakeReader{queue: []kafka.Message{
		{Value: payload},
		{Value: []byte("not json")},
	}}
	r := newReplayer(reader, reissuer, zap.NewNop())

	n, err := r.Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 2 || reader.committed != 2 {
		t.Fatalf("expected 2 processed and committed, got %d/%d", n, reader.committed)
	}
	if len(reissuer.got) != 1 || reissuer.got[0].AccountID != "acc-1" || reissuer.got[0].Kind != KindSignup {
		t.Fatalf("unexpected reissues: %+v", reissuer.got)
	}
}

func TestReplayerCommitsSkippedLetters(t *testing.T) {
	reissuer := &recordingReissuer{fail: errors.New("not reissuable")}
	payload, _ := json.Marshal(DeadLetter{Message: Message{ID: "m1", Kind: KindAdminReset, Channel: domain.ChannelEmail, To: "a@x.com"}})
	reader := &fakeReader{queue: []kafka.Message{{Value: payload}}}
	r := newReplayer(reader, reissuer, zap.NewNop())

	n, err := r.Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 1 || reader.committed != 1 {
		t.Fatalf("expected skipped letter committed, got %d/%d", n, reader.committed)
	}
}

func TestReplayerStopsOnCancel(t *testing.T) {
	r := newReplayer(&fakeReader{}, &recordingReissuer{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := r.Run(ctx, 0)
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no messages, got %d", n)
	}
}

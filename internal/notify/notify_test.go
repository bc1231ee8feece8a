package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	To, Subject, Body string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []message
	err  error
}

func (r *recordingSender) Send(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, message{To: to, Subject: subject, Body: body})
	return nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestMailer_Templates(t *testing.T) {
	rec := &recordingSender{}
	m := NewMailer(rec)
	ctx := context.Background()

	require.NoError(t, m.SendTwoFactorCode(ctx, "alice@example.com", "123456"))
	require.NoError(t, m.SendWelcome(ctx, "alice@example.com", "Alice"))

	require.Len(t, rec.sent, 2)
	assert.Equal(t, "Your Two-Factor Authentication Code", rec.sent[0].Subject)
	assert.Contains(t, rec.sent[0].Body, "<strong>123456</strong>")
	assert.Contains(t, rec.sent[0].Body, "expire in 10 minutes")
	assert.Equal(t, "Welcome to AuthSystem!", rec.sent[1].Subject)
	assert.Contains(t, rec.sent[1].Body, "<h2>Welcome Alice!</h2>")
}

func TestMailer_EscapesNames(t *testing.T) {
	rec := &recordingSender{}
	require.NoError(t, NewMailer(rec).SendWelcome(context.Background(), "x@example.com", "<script>"))
	assert.NotContains(t, rec.sent[0].Body, "<script>")
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf))

	require.NoError(t, s.Send(context.Background(), "bob@example.com", "Hello", "<p>body</p>"))

	out := buf.String()
	assert.Contains(t, out, "Sending email to bob@example.com with subject Hello")
	assert.Contains(t, out, "<p>body</p>")
}

func TestStreamSender_QueuesMessage(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	s := NewStreamSender(client, "")
	require.NoError(t, NewMailer(s).SendTwoFactorCode(ctx, "carol@example.com", "654321"))

	entries, err := client.XRange(ctx, DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "carol@example.com", entries[0].Values[fieldTo])
	assert.Equal(t, subjectTwoFactor, entries[0].Values[fieldSubject])
	assert.Contains(t, entries[0].Values[fieldBody], "654321")
}

func TestStreamSender_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err = NewStreamSender(client, "mail").Send(context.Background(), "a@example.com", "s", "b")
	assert.Error(t, err)
}

func TestDispatcher_DeliversAndAcks(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	rec := &recordingSender{}

	d := NewDispatcher(client, DispatcherConfig{Stream: "mail", Block: 50 * time.Millisecond}, rec, zerolog.Nop())
	require.NoError(t, d.EnsureGroup(ctx))
	require.NoError(t, d.EnsureGroup(ctx))

	require.NoError(t, NewStreamSender(client, "mail").Send(ctx, "dan@example.com", "Subject", "Body"))
	require.NoError(t, d.read(ctx))

	require.Len(t, rec.sent, 1)
	assert.Equal(t, message{To: "dan@example.com", Subject: "Subject", Body: "Body"}, rec.sent[0])

	pending, err := client.XPending(ctx, "mail", d.cfg.Group).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestDispatcher_LeavesFailedMessagesPending(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	rec := &recordingSender{err: errors.New("smtp down")}

	d := NewDispatcher(client, DispatcherConfig{Stream: "mail", Block: 50 * time.Millisecond}, rec, zerolog.Nop())
	require.NoError(t, d.EnsureGroup(ctx))
	require.NoError(t, NewStreamSender(client, "mail").Send(ctx, "erin@example.com", "Subject", "Body"))
	require.NoError(t, d.read(ctx))

	pending, err := client.XPending(ctx, "mail", d.cfg.Group).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
}

func TestDispatcher_HandleRejectsMissingRecipient(t *testing.T) {
	d := NewDispatcher(nil, DispatcherConfig{}, &recordingSender{}, zerolog.Nop())

	err := d.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{fieldSubject: "s"}})
	assert.Error(t, err)
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	_, client := newTestRedis(t)
	rec := &recordingSender{}
	d := NewDispatcher(client, DispatcherConfig{Stream: "mail", Block: 20 * time.Millisecond}, rec, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.NoError(t, NewStreamSender(client, "mail").Send(context.Background(), "fay@example.com", "S", "B"))
	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.sent) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	changes []Change
	resyncs int
	err     error
}

func (p *capturePublisher) Resync(context.Context) error {
	p.resyncs++
	return p.err
}

func (p *capturePublisher) Publish(_ context.Context, c Change) error {
	p.changes = append(p.changes, c)
	return p.err
}

func TestRelay_HandleNotification(t *testing.T) {
	t.Run("decodes trigger payload", func(t *testing.T) {
		pub := &capturePublisher{}
		r := NewRelay("", pub)

		err := r.HandleNotification(context.Background(),
			`{"table":"messages","type":"INSERT","keys":{"id":"m1","project_id":"P"},"committedAt":"2026-03-01T10:00:00.123456+00:00"}`)
		require.NoError(t, err)
		require.Len(t, pub.changes, 1)

		c := pub.changes[0]
		assert.Equal(t, "messages", c.Table)
		assert.Equal(t, ChangeInsert, c.Type)
		assert.Equal(t, "P", c.Key("project_id"))
		assert.Equal(t, 2026, c.CommittedAt.Year())
	})

	t.Run("null key becomes empty", func(t *testing.T) {
		pub := &capturePublisher{}
		r := NewRelay("", pub)

		err := r.HandleNotification(context.Background(),
			`{"table":"projects","type":"UPDATE","keys":{"id":"p1","client_id":null}}`)
		require.NoError(t, err)
		assert.Equal(t, "", pub.changes[0].Key("client_id"))
	})

	t.Run("rejects malformed payload", func(t *testing.T) {
		pub := &capturePublisher{}
		r := NewRelay("", pub)

		assert.Error(t, r.HandleNotification(context.Background(), `not json`))
		assert.Error(t, r.HandleNotification(context.Background(), `{"table":"messages","type":"TRUNCATE"}`))
		assert.Empty(t, pub.changes)
	})

	t.Run("surfaces publish errors", func(t *testing.T) {
		pub := &capturePublisher{err: errors.New("redis down")}
		r := NewRelay("", pub)

		err := r.HandleNotification(context.Background(), `{"table":"files","type":"DELETE","keys":{"id":"f1"}}`)
		assert.EqualError(t, err, "redis down")
	})
}

func TestRelay_PublishesThroughManager(t *testing.T) {
	m := NewManager(NewLocalBus(), nil)
	defer m.Close()

	rec := newRecorder()
	_, err := m.Subscribe("files", "project_id=eq.P", rec.handle)
	require.NoError(t, err)

	r := NewRelay("", m)
	require.NoError(t, r.HandleNotification(context.Background(),
		`{"table":"files","type":"INSERT","keys":{"id":"f1","project_id":"P"}}`))

	assert.Equal(t, "f1", rec.next(t).Key("id"))
}

func TestRelay_HandleReconnect(t *testing.T) {
	t.Run("broadcasts a resync", func(t *testing.T) {
		pub := &capturePublisher{}
		r := NewRelay("", pub)

		require.NoError(t, r.HandleReconnect(context.Background()))
		assert.Equal(t, 1, pub.resyncs)
		assert.Empty(t, pub.changes)
	})

	t.Run("every open subscription reloads", func(t *testing.T) {
		m := NewManager(NewLocalBus(), nil)
		defer m.Close()

		messages, files := newRecorder(), newRecorder()
		_, err := m.Subscribe("messages", "project_id=eq.P", messages.handle)
		require.NoError(t, err)
		_, err = m.Subscribe("files", "", files.handle)
		require.NoError(t, err)

		r := NewRelay("", m)
		assert.Eventually(t, func() bool {
			if err := r.HandleReconnect(context.Background()); err != nil {
				return false
			}
			select {
			case c := <-messages.ch:
				return c.Type == ChangeResync
			case <-time.After(20 * time.Millisecond):
				return false
			}
		}, waitTimeout, 10*time.Millisecond)

		c := files.next(t)
		assert.Equal(t, ChangeResync, c.Type)
		assert.Equal(t, "files", c.Table)
	})
}

package engine_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthctl/internal/engine"
	"github.com/roach88/synthctl/internal/fault"
)

func TestSession_NextRequestIDStartsAtOne(t *testing.T) {
	s, _ := openSession(t)

	assert.Equal(t, engine.RequestID(1), s.NextRequestID())
	assert.Equal(t, engine.RequestID(2), s.NextRequestID())
}

func TestSession_ReplyDispatchedOnce(t *testing.T) {
	s, e := openSession(t)

	calls := 0
	var got []byte
	id := s.NextRequestID()
	require.NoError(t, s.Register(id, func(rid engine.RequestID, packet []byte) error {
		assert.Equal(t, id, rid)
		calls++
		got = append([]byte(nil), packet...)
		return nil
	}))
	assert.Equal(t, 1, s.Pending())

	require.NoError(t, e.Deliver(id, []byte("first")))
	require.NoError(t, e.Deliver(id, []byte("second")), "second delivery is dropped")

	assert.Equal(t, 1, calls)
	assert.Equal(t, []byte("first"), got)
	assert.Equal(t, 0, s.Pending())
}

func TestSession_UnknownReplyDropped(t *testing.T) {
	s, e := openSession(t)

	assert.NoError(t, e.Deliver(42, []byte("stray")))
	assert.Equal(t, 0, s.Pending())
}

func TestSession_RegisterValidation(t *testing.T) {
	s, _ := openSession(t)
	noop := func(engine.RequestID, []byte) error { return nil }

	id := s.NextRequestID()
	require.NoError(t, s.Register(id, noop))

	err := s.Register(id, noop)
	assert.True(t, engine.IsDuplicateRequest(err), "got %v", err)
	assert.True(t, engine.IsProtocolMisuse(err))

	err = s.Register(engine.Notification, noop)
	assert.True(t, errors.Is(err, fault.ErrArgument), "got %v", err)
	assert.False(t, engine.IsDuplicateRequest(err))

	err = s.Register(s.NextRequestID(), nil)
	assert.True(t, errors.Is(err, fault.ErrArgument), "got %v", err)

	assert.True(t, s.Unregister(id))
	assert.False(t, s.Unregister(id))
}

func TestSession_HandlerErrorPropagates(t *testing.T) {
	s, e := openSession(t)
	boom := errors.New("bad reply")

	id := s.NextRequestID()
	require.NoError(t, s.Register(id, func(engine.RequestID, []byte) error { return boom }))

	err := e.Deliver(id, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Pending(), "handler removed even though it failed")
}

func TestSession_HandlerMayRegisterAgain(t *testing.T) {
	s, e := openSession(t)

	var next engine.RequestID
	id := s.NextRequestID()
	require.NoError(t, s.Register(id, func(engine.RequestID, []byte) error {
		next = s.NextRequestID()
		return s.Register(next, func(engine.RequestID, []byte) error { return nil })
	}))

	require.NoError(t, e.Deliver(id, nil))
	assert.Equal(t, 1, s.Pending())
	require.NoError(t, e.Deliver(next, nil))
	assert.Equal(t, 0, s.Pending())
}

func TestSession_CallRegistersAndSends(t *testing.T) {
	s, e := openSession(t)

	var replied engine.RequestID
	id, err := s.Call(func(r *engine.Request, id engine.RequestID) error {
		return r.Set(s.Root(), int(id), 1)
	}, func(id engine.RequestID, _ []byte) error {
		replied = id
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, engine.RequestID(1), id)
	assert.Equal(t, []string{"/node/set ,iif 0 1 1\n"}, sent(t, e))
	assert.Equal(t, 1, s.Pending())

	require.NoError(t, e.Deliver(id, nil))
	assert.Equal(t, id, replied)
}

func TestSession_CallFailureUnregisters(t *testing.T) {
	s, e := openSession(t)
	noop := func(engine.RequestID, []byte) error { return nil }
	boom := errors.New("boom")

	_, err := s.Call(func(*engine.Request, engine.RequestID) error { return boom }, noop)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Pending())

	e.FailSend(errors.New("device lost"))
	_, err = s.Call(func(r *engine.Request, _ engine.RequestID) error {
		return r.Set(s.Root(), 0, 1)
	}, noop)
	assert.True(t, errors.Is(err, fault.ErrEngine), "got %v", err)
	assert.Equal(t, 0, s.Pending())

	_, err = s.Call(func(*engine.Request, engine.RequestID) error { return nil }, noop)
	assert.True(t, errors.Is(err, fault.ErrArgument), "empty request: %v", err)
	assert.Equal(t, 0, s.Pending())
}

func TestSession_NotificationsFanOut(t *testing.T) {
	s, e := openSession(t)

	var a, b [][]byte
	cancelA := s.Subscribe(func(p []byte) { a = append(a, p) })
	s.Subscribe(func(p []byte) { b = append(b, p) })

	payload := []byte("/done")
	require.NoError(t, e.Deliver(engine.Notification, payload))
	payload[0] = 'X'

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, []byte("/done"), a[0], "subscribers get a copy")

	cancelA()
	cancelA()
	require.NoError(t, e.Deliver(engine.Notification, []byte("/late")))
	assert.Len(t, a, 1)
	assert.Len(t, b, 2)
}

func TestSession_CloseDiscardsPending(t *testing.T) {
	s, e := openSession(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Register(s.NextRequestID(), func(engine.RequestID, []byte) error {
			t.Error("handler must not run after close")
			return nil
		}))
	}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 0, s.Pending())
	assert.True(t, e.Closed())

	_, err := s.Group(s.Root())
	assert.True(t, engine.IsProtocolMisuse(err), "group after close: %v", err)
	assert.Equal(t, 0, s.Stats().LiveNodes)
	err = s.Register(s.NextRequestID(), func(engine.RequestID, []byte) error { return nil })
	assert.True(t, engine.IsProtocolMisuse(err), "register after close: %v", err)
	assert.False(t, engine.IsDuplicateRequest(err), "closed session is not a duplicate id")
	assert.True(t, engine.IsProtocolMisuse(s.Start()))
}

func TestSession_RegisterRacingClose(t *testing.T) {
	for round := 0; round < 50; round++ {
		s, _ := openSession(t)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
		)
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 10; i++ {
					err := s.Register(s.NextRequestID(), func(engine.RequestID, []byte) error { return nil })
					if err != nil {
						assert.True(t, engine.IsProtocolMisuse(err), "got %v", err)
						assert.False(t, engine.IsDuplicateRequest(err), "got %v", err)
						continue
					}
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Close())
		}()
		wg.Wait()

		assert.Equal(t, 0, s.Pending(), "round %d: no handler outlives close (%d accepted)", round, accepted)
	}
}

func TestSession_ConcurrentUse(t *testing.T) {
	s, e := openSession(t)

	const workers = 16
	const perWorker = 20

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int32]bool)
		req = make(map[engine.RequestID]bool)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				g, err := s.Group(s.Root())
				if !assert.NoError(t, err) {
					return
				}
				id, err := s.Call(func(r *engine.Request, _ engine.RequestID) error {
					return r.Set(g, 0, 1)
				}, func(engine.RequestID, []byte) error { return nil })
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				ids[g.ID()] = true
				req[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, workers*perWorker, "node ids unique")
	assert.Len(t, req, workers*perWorker, "request ids unique")
	assert.Len(t, e.Packets(), 2*workers*perWorker)
	assert.Equal(t, workers*perWorker, s.Pending())
}

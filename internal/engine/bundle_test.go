package engine_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthctl/internal/engine"
	"github.com/roach88/synthctl/internal/osc"
)

func TestBundle_NestedStructure(t *testing.T) {
	s, e := openSession(t)

	b := s.NewBundle(engine.Immediately)
	defer b.Release()

	g, err := b.Group(s.Root())
	require.NoError(t, err)
	err = b.Bundle(2, func(child *engine.Bundle) error {
		if err := child.Set(g, 0, 0.5); err != nil {
			return err
		}
		return child.Bundle(3, func(grandchild *engine.Bundle) error {
			return grandchild.Free(g)
		})
	})
	require.NoError(t, err)
	require.NoError(t, b.Set(s.Root(), 1, 1))
	require.NoError(t, b.Send())

	assert.Equal(t, []string{
		"#bundle now\n" +
			"  /group/new ,iii 1 0 0\n" +
			"  #bundle @2\n" +
			"    /node/set ,iif 1 0 0.5\n" +
			"    #bundle @3\n" +
			"      /node/free ,i 1\n" +
			"  /node/set ,iif 0 1 1\n",
	}, sent(t, e))

	p, err := osc.Parse(e.Last())
	require.NoError(t, err)
	top := p.(*osc.Bundle)
	require.Len(t, top.Elements, 3)
	child := top.Elements[1].(*osc.Bundle)
	assert.Equal(t, osc.TimeTag(2), child.TimeTag)
	require.Len(t, child.Elements, 2)
	assert.IsType(t, &osc.Bundle{}, child.Elements[1])
}

func TestBundle_NestedSendIsMisuse(t *testing.T) {
	s, e := openSession(t)

	b := s.NewBundle(engine.Immediately)
	defer b.Release()

	var sendErr error
	err := b.Bundle(1, func(child *engine.Bundle) error {
		sendErr = child.Send()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, engine.IsProtocolMisuse(sendErr), "got %v", sendErr)
	assert.Empty(t, e.Packets())

	require.NoError(t, b.Send())
	assert.Len(t, e.Packets(), 1)
}

func TestBundle_OuterCommandWhileChildOpen(t *testing.T) {
	s, _ := openSession(t)

	b := s.NewBundle(engine.Immediately)
	defer b.Release()

	err := b.Bundle(1, func(child *engine.Bundle) error {
		if _, err := b.Group(s.Root()); err != nil {
			return err
		}
		return nil
	})
	assert.True(t, engine.IsProtocolMisuse(err), "got %v", err)
	assert.Equal(t, 0, s.Stats().LiveNodes)

	_, err = b.Group(s.Root())
	assert.NoError(t, err, "outer bundle usable again once the child is closed")
}

func TestBundle_CloseWithOpenChildIsMisuse(t *testing.T) {
	s, _ := openSession(t)

	b := s.NewBundle(engine.Immediately)
	defer b.Release()

	var closeErr error
	err := b.Bundle(1, func(*engine.Bundle) error {
		closeErr = b.Close()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, engine.IsProtocolMisuse(closeErr), "got %v", closeErr)
	assert.NoError(t, b.Close())
}

func TestBundle_CloseIsIdempotent(t *testing.T) {
	s, e := openSession(t)

	b := s.NewBundle(0.25)
	defer b.Release()

	require.NoError(t, b.Set(s.Root(), 0, 1))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.True(t, engine.IsProtocolMisuse(b.Set(s.Root(), 0, 2)), "closed bundle takes no commands")
	require.NoError(t, b.Send())
	assert.Equal(t, []string{"#bundle @0.25\n  /node/set ,iif 0 0 1\n"}, sent(t, e))
	assert.NoError(t, b.Close(), "close after send")
}

func TestBundle_ChildClosedAfterItsScope(t *testing.T) {
	s, _ := openSession(t)

	b := s.NewBundle(engine.Immediately)
	defer b.Release()

	var kept *engine.Bundle
	require.NoError(t, b.Bundle(1, func(child *engine.Bundle) error {
		kept = child
		return nil
	}))
	assert.True(t, engine.IsProtocolMisuse(kept.Set(s.Root(), 0, 1)))
	assert.NoError(t, kept.Close())
}

func TestBundle_SendForceClosesOpenBundle(t *testing.T) {
	s, e := openSession(t)

	b := s.NewBundle(engine.Immediately)
	defer b.Release()
	require.NoError(t, b.Set(s.Root(), 0, 1))
	require.NoError(t, b.Send())

	assert.Equal(t, []string{"#bundle now\n  /node/set ,iif 0 0 1\n"}, sent(t, e))
}

func TestBundle_SendFromNestedScope(t *testing.T) {
	s, e := openSession(t)

	b := s.NewBundle(engine.Immediately)
	defer b.Release()

	var leftover error
	err := b.Bundle(1, func(child *engine.Bundle) error {
		if err := child.Set(s.Root(), 0, 1); err != nil {
			return err
		}
		if err := b.Send(); err != nil {
			return err
		}
		leftover = child.Set(s.Root(), 0, 2)
		return nil
	})
	require.NoError(t, err, "child close after the packet was sent")
	assert.True(t, engine.IsProtocolMisuse(leftover), "got %v", leftover)

	assert.Equal(t, []string{"#bundle now\n  #bundle @1\n    /node/set ,iif 0 0 1\n"}, sent(t, e))
	assert.True(t, engine.IsProtocolMisuse(b.Send()))
	assert.NoError(t, b.Close())
}

func TestBundle_ChildErrorIsReturnedAndChildClosed(t *testing.T) {
	s, e := openSession(t)
	boom := errors.New("boom")

	b := s.NewBundle(engine.Immediately)
	defer b.Release()

	err := b.Bundle(1, func(child *engine.Bundle) error {
		if err := child.Set(s.Root(), 0, 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, b.Send())
	assert.Equal(t, []string{"#bundle now\n  #bundle @1\n    /node/set ,iif 0 0 1\n"}, sent(t, e))
}

func TestSession_BundleSetOnFreedIDAccepted(t *testing.T) {
	s, e := openSession(t)

	g, err := s.Group(s.Root())
	require.NoError(t, err)
	require.NoError(t, s.Free(g))

	err = s.Bundle(engine.Immediately, func(b *engine.Bundle) error {
		return b.Set(g, 0, 1)
	})
	require.NoError(t, err)
	assert.Len(t, e.Packets(), 3)
}

func TestSession_BundleFailureSendsNothing(t *testing.T) {
	s, e := openSession(t)
	boom := errors.New("boom")

	err := s.Bundle(engine.Immediately, func(b *engine.Bundle) error {
		if _, err := b.Group(s.Root()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, e.Packets())
	assert.Equal(t, 0, s.Stats().LiveNodes, "ids allocated by the unsent bundle are returned")
}

func TestRequest_CreateAndFreeInOneUnsentBundle(t *testing.T) {
	s, _ := openSession(t)

	b := s.NewBundle(engine.Immediately)
	g, err := b.Group(s.Root())
	require.NoError(t, err)
	require.NoError(t, b.Free(g))
	b.Release()

	assert.Equal(t, 0, s.Stats().LiveNodes)
}

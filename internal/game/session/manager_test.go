package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBridgeEntity_Push(t *testing.T) {
	e := NewBridgeEntity("test", 4)
	require.NoError(t, e.Push([]byte("hello")))

	data := <-e.Events()
	assert.Equal(t, []byte("hello"), data)
}

func TestBridgeEntity_PushClosed(t *testing.T) {
	e := NewBridgeEntity("test", 4)
	require.NoError(t, e.Close())
	assert.True(t, e.IsClosed())
	assert.Error(t, e.Push([]byte("fail")))
}

func TestBridgeEntity_PushFull(t *testing.T) {
	e := NewBridgeEntity("test", 1)
	require.NoError(t, e.Push([]byte("first")))
	err := e.Push([]byte("overflow"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "buffer full")
}

func TestBridgeEntity_CloseIdempotent(t *testing.T) {
	e := NewBridgeEntity("test", 4)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.True(t, e.IsClosed())
}

func TestManager_Join(t *testing.T) {
	m := NewManager()
	p, err := m.Join("u1", "Alice", false)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	assert.False(t, p.Authority)
	assert.Equal(t, 1, m.Count())

	_, err = m.Join("u1", "Alice", false)
	assert.Error(t, err, "duplicate uid rejected")
}

func TestManager_SingleAuthority(t *testing.T) {
	m := NewManager()
	gm, err := m.Join("gm", "GM", true)
	require.NoError(t, err)
	assert.Same(t, gm, m.Authority())

	_, err = m.Join("usurper", "Usurper", true)
	assert.Error(t, err, "second authority rejected")

	require.NoError(t, m.Leave("gm"))
	assert.Nil(t, m.Authority())
	assert.True(t, gm.Entity.IsClosed(), "leave closes the push channel")

	_, err = m.Join("gm2", "GM2", true)
	require.NoError(t, err, "authority role freed by leave")
}

func TestManager_ActorOwnership(t *testing.T) {
	m := NewManager()
	p, err := m.Join("u1", "Alice", false)
	require.NoError(t, err)

	require.NoError(t, m.AssignActor("u1", "actor-1"))
	require.NoError(t, m.AssignActor("u1", "actor-1"), "assignment is idempotent")
	assert.Len(t, p.ActorIDs, 1)
	assert.Same(t, p, m.OwnerOf("actor-1"))
	assert.Nil(t, m.OwnerOf("actor-9"))

	assert.Error(t, m.AssignActor("ghost", "actor-2"))
}

func TestManager_Broadcast(t *testing.T) {
	m := NewManager()
	a, err := m.Join("a", "A", true)
	require.NoError(t, err)
	b, err := m.Join("b", "B", false)
	require.NoError(t, err)

	m.Broadcast([]byte("round"))
	assert.Equal(t, []byte("round"), <-a.Entity.Events())
	assert.Equal(t, []byte("round"), <-b.Entity.Events())
}

func TestManager_ConcurrentJoinLeave(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := fmt.Sprintf("u%d", i)
			_, err := m.Join(uid, uid, false)
			require.NoError(t, err)
			require.NoError(t, m.AssignActor(uid, uid+"-actor"))
			if i%2 == 0 {
				require.NoError(t, m.Leave(uid))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, m.Count())
}

func TestManager_OwnershipProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewManager()
		n := rapid.IntRange(1, 8).Draw(t, "participants")
		for i := 0; i < n; i++ {
			uid := fmt.Sprintf("u%d", i)
			_, err := m.Join(uid, uid, false)
			require.NoError(t, err)
		}
		// Each actor is assigned to exactly one participant.
		actors := rapid.IntRange(1, 16).Draw(t, "actors")
		for i := 0; i < actors; i++ {
			owner := fmt.Sprintf("u%d", rapid.IntRange(0, n-1).Draw(t, "owner"))
			require.NoError(t, m.AssignActor(owner, fmt.Sprintf("actor-%d", i)))
		}
		for i := 0; i < actors; i++ {
			require.NotNil(t, m.OwnerOf(fmt.Sprintf("actor-%d", i)))
		}
	})
}

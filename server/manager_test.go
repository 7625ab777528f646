package server

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	clock := newFakeClock()
	return NewDirectory(4, NewGrid(DefaultConfig().Game, rand.New(rand.NewSource(1))), clock.Now)
}

func TestDirectory_CreateRoom(t *testing.T) {
	d := newTestDirectory(t)

	_, ok := d.FindAvailableRoom()
	assert.False(t, ok)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := d.CreateRoom()
		require.False(t, seen[id], "duplicate room id %s", id)
		seen[id] = true
		assert.True(t, strings.HasPrefix(id, "room_"))

		r, ok := d.Room(id)
		require.True(t, ok)
		assert.NotNil(t, r.Food, "new room gets a food position")
		assert.Equal(t, 4, r.MaxPlayers)
		assert.False(t, r.IsActive)
	}
}

func TestDirectory_FindAvailableRoomUsesCreationOrder(t *testing.T) {
	d := newTestDirectory(t)
	first := d.CreateRoom()
	second := d.CreateRoom()

	for i := 0; i < 4; i++ {
		require.NoError(t, d.RegisterPlayer(first, &Player{ID: PlayerID(fmt.Sprintf("p%d", i))}))
	}
	id, ok := d.FindAvailableRoom()
	require.True(t, ok)
	assert.Equal(t, second, id)

	_, _ = d.RemovePlayer("p0")
	id, _ = d.FindAvailableRoom()
	assert.Equal(t, first, id, "freed slot in the older room wins")
}

func TestDirectory_RegisterUnknownRoom(t *testing.T) {
	d := newTestDirectory(t)
	err := d.RegisterPlayer("room_missing", &Player{ID: "a"})

	require.ErrorIs(t, err, ErrRoomNotFound)
	_, ok := d.RoomOf("a")
	assert.False(t, ok)
}

func TestDirectory_RemovePlayer(t *testing.T) {
	d := newTestDirectory(t)
	r, err := d.Assign(&Player{ID: "a"})
	require.NoError(t, err)
	_, err = d.Assign(&Player{ID: "b"})
	require.NoError(t, err)

	got, ok := d.RemovePlayer("a")
	require.True(t, ok)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, 1, got.Len())
	_, exists := d.Room(r.ID)
	assert.True(t, exists)

	_, ok = d.RemovePlayer("b")
	require.True(t, ok)
	_, exists = d.Room(r.ID)
	assert.False(t, exists, "empty room is removed eagerly")

	_, ok = d.RemovePlayer("b")
	assert.False(t, ok, "second removal is a no-op")
	rooms, players := d.Counts()
	assert.Zero(t, rooms)
	assert.Zero(t, players)
}

func TestDirectory_AssignFillsThenCreates(t *testing.T) {
	d := newTestDirectory(t)
	roomOf := map[PlayerID]string{}
	for i := 0; i < 9; i++ {
		id := PlayerID(fmt.Sprintf("p%d", i))
		r, err := d.Assign(&Player{ID: id})
		require.NoError(t, err)
		roomOf[id] = r.ID
	}
	rooms := d.Rooms()
	require.Len(t, rooms, 3)
	assert.Equal(t, 4, rooms[0].Len())
	assert.Equal(t, 4, rooms[1].Len())
	assert.Equal(t, 1, rooms[2].Len())
	assert.Equal(t, roomOf["p0"], roomOf["p3"])
	assert.NotEqual(t, roomOf["p3"], roomOf["p4"])
	checkDirectoryInvariants(t, d)
}

func TestDirectory_RandomJoinLeaveKeepsInvariants(t *testing.T) {
	d := newTestDirectory(t)
	rng := rand.New(rand.NewSource(42))
	var live []PlayerID
	for i := 0; i < 2000; i++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			id := PlayerID(fmt.Sprintf("p%d", i))
			_, err := d.Assign(&Player{ID: id})
			require.NoError(t, err)
			live = append(live, id)
		} else {
			k := rng.Intn(len(live))
			_, ok := d.RemovePlayer(live[k])
			require.True(t, ok)
			live = append(live[:k], live[k+1:]...)
		}
		checkDirectoryInvariants(t, d)
	}
	for _, r := range d.Rooms() {
		assert.NotZero(t, r.Len(), "no empty room survives")
	}
}

func TestDirectory_ConcurrentAssign(t *testing.T) {
	d := newTestDirectory(t)
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, err := d.Assign(&Player{ID: PlayerID(fmt.Sprintf("g%d-%d", g, i))})
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	rooms, players := d.Counts()
	assert.Equal(t, 800, players)
	assert.Equal(t, 200, rooms)
	checkDirectoryInvariants(t, d)
}

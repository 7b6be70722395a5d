package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnemy(r *Registry, body BodyHandle) *Enemy {
	e := &Enemy{
		entityBase: entityBase{id: r.NextID(), body: body, cat: CategoryEnemy},
		HP:         100,
		MaxHP:      100,
	}
	r.Add(e)
	return e
}

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	e := newTestEnemy(r, 7)

	assert.Equal(t, 1, r.Count(CategoryEnemy))
	assert.Same(t, e, r.Get(e.ID()))
	assert.Same(t, e, r.ByBody(7))

	r.Remove(e.ID())
	assert.Equal(t, 0, r.Count(CategoryEnemy))
	assert.Nil(t, r.Get(e.ID()))
	assert.Nil(t, r.ByBody(7))
	assert.False(t, r.Alive(e.ID()))
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := newTestEnemy(r, 1)
	b := newTestEnemy(r, 2)

	r.Remove(a.ID())
	r.Remove(a.ID())
	r.Remove(EntityID(999))

	assert.Equal(t, 1, r.Count(CategoryEnemy))
	assert.True(t, r.Alive(b.ID()))
}

func TestRegistryIteratesInInsertionOrder(t *testing.T) {
	r := NewRegistry()
	var want []EntityID
	for i := 0; i < 5; i++ {
		want = append(want, newTestEnemy(r, BodyHandle(10+i)).ID())
	}
	r.Remove(want[2])
	want = append(want[:2], want[3:]...)

	var got []EntityID
	for _, e := range r.Enemies() {
		got = append(got, e.ID())
	}
	assert.Equal(t, want, got)
}

func TestRegistryDefersRemovalDuringIteration(t *testing.T) {
	r := NewRegistry()
	a := newTestEnemy(r, 1)
	b := newTestEnemy(r, 2)
	c := newTestEnemy(r, 3)

	var visited []EntityID
	r.ForEach(CategoryEnemy, func(e Entity) bool {
		visited = append(visited, e.ID())
		r.Remove(a.ID())
		r.Remove(b.ID())
		assert.True(t, r.Alive(b.ID()), "removal must wait for the iteration to end")
		return true
	})

	assert.Equal(t, []EntityID{a.ID(), b.ID(), c.ID()}, visited)
	assert.Equal(t, 1, r.Count(CategoryEnemy))
	assert.True(t, r.Alive(c.ID()))
}

func TestRegistryNestedIterationFlushesOnce(t *testing.T) {
	r := NewRegistry()
	a := newTestEnemy(r, 1)
	newTestEnemy(r, 2)

	r.ForEach(CategoryEnemy, func(Entity) bool {
		r.ForEach(CategoryEnemy, func(Entity) bool {
			r.Remove(a.ID())
			return true
		})
		assert.True(t, r.Alive(a.ID()), "inner iteration must not flush while outer runs")
		return true
	})
	assert.False(t, r.Alive(a.ID()))
	assert.Equal(t, 1, r.Count(CategoryEnemy))
}

func TestRegistryForEachStopsEarly(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 4; i++ {
		newTestEnemy(r, BodyHandle(i+1))
	}
	n := 0
	r.ForEach(CategoryEnemy, func(Entity) bool {
		n++
		return n < 2
	})
	assert.Equal(t, 2, n)
}

func TestRegistryPlayerSlot(t *testing.T) {
	r := NewRegistry()
	require.Nil(t, r.Player())

	p := &Player{entityBase: entityBase{id: r.NextID(), body: 1, cat: CategoryPlayer}}
	r.Add(p)
	assert.Same(t, p, r.Player())

	r.Clear()
	assert.Nil(t, r.Player())
	assert.Equal(t, 0, r.Count(CategoryPlayer))
}

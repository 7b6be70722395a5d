package arena

// Registry owns every live entity record and is the single source of truth
// for liveness. Iteration is in insertion order.
type Registry struct {
	next     EntityID
	entities map[EntityID]Entity
	byBody   map[BodyHandle]EntityID
	order    map[Category][]EntityID
	player   *Player

	iterating int
	deferred  []EntityID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[EntityID]Entity),
		byBody:   make(map[BodyHandle]EntityID),
		order:    make(map[Category][]EntityID),
	}
}

// NextID reserves a fresh entity id.
func (r *Registry) NextID() EntityID {
	r.next++
	return r.next
}

// Add registers an entity. The player slot holds at most one Player.
func (r *Registry) Add(e Entity) {
	id := e.ID()
	if _, ok := r.entities[id]; ok {
		return
	}
	r.entities[id] = e
	r.byBody[e.Body()] = id
	r.order[e.Category()] = append(r.order[e.Category()], id)
	if p, ok := e.(*Player); ok {
		r.player = p
	}
}

// Remove drops an entity record. Absent ids are ignored. While a ForEach is
// running the removal is deferred until the outermost iteration returns.
func (r *Registry) Remove(id EntityID) {
	if r.iterating > 0 {
		r.deferred = append(r.deferred, id)
		return
	}
	e, ok := r.entities[id]
	if !ok {
		return
	}
	delete(r.entities, id)
	delete(r.byBody, e.Body())

	ids := r.order[e.Category()]
	for i, v := range ids {
		if v == id {
			r.order[e.Category()] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if r.player != nil && r.player.ID() == id {
		r.player = nil
	}
}

// Get returns the entity with the given id, or nil.
func (r *Registry) Get(id EntityID) Entity {
	return r.entities[id]
}

// Alive reports whether id is still registered.
func (r *Registry) Alive(id EntityID) bool {
	_, ok := r.entities[id]
	return ok
}

// ByBody maps a physics body handle back to its entity.
func (r *Registry) ByBody(h BodyHandle) Entity {
	id, ok := r.byBody[h]
	if !ok {
		return nil
	}
	return r.entities[id]
}

// Player returns the player record, or nil before the arena is built.
func (r *Registry) Player() *Player {
	return r.player
}

// Count returns the number of live entities of a category.
func (r *Registry) Count(cat Category) int {
	return len(r.order[cat])
}

// ForEach calls fn for every live entity of a category until fn returns
// false. Removals requested inside fn are applied after iteration ends.
func (r *Registry) ForEach(cat Category, fn func(Entity) bool) {
	r.iterating++
	defer func() {
		r.iterating--
		if r.iterating == 0 && len(r.deferred) > 0 {
			pending := r.deferred
			r.deferred = nil
			for _, id := range pending {
				r.Remove(id)
			}
		}
	}()

	for _, id := range r.order[cat] {
		e, ok := r.entities[id]
		if !ok {
			continue
		}
		if !fn(e) {
			return
		}
	}
}

// Enemies returns the live enemies in iteration order.
func (r *Registry) Enemies() []*Enemy {
	out := make([]*Enemy, 0, r.Count(CategoryEnemy))
	r.ForEach(CategoryEnemy, func(e Entity) bool {
		out = append(out, e.(*Enemy))
		return true
	})
	return out
}

// Bullets returns the live bullets in iteration order.
func (r *Registry) Bullets() []*Bullet {
	out := make([]*Bullet, 0, r.Count(CategoryBullet))
	r.ForEach(CategoryBullet, func(e Entity) bool {
		out = append(out, e.(*Bullet))
		return true
	})
	return out
}

// Walls returns the arena walls in build order.
func (r *Registry) Walls() []*Wall {
	out := make([]*Wall, 0, r.Count(CategoryWall))
	r.ForEach(CategoryWall, func(e Entity) bool {
		out = append(out, e.(*Wall))
		return true
	})
	return out
}

// Clear drops every record, the player included.
func (r *Registry) Clear() {
	r.entities = make(map[EntityID]Entity)
	r.byBody = make(map[BodyHandle]EntityID)
	r.order = make(map[Category][]EntityID)
	r.player = nil
	r.deferred = nil
}

package arena

// Hit records one damage application.
type Hit struct {
	Enemy  EntityID
	Bullet EntityID // zero for melee
	Damage int
	Killed bool
}

// Resolver turns begin-contact notifications into damage and queued
// destruction. Contacts are only recorded while the physics step runs;
// Drain applies them once the step has returned.
type Resolver struct {
	registry *Registry
	contacts []Contact
	pending  []EntityID
}

// NewResolver creates a resolver bound to a registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// OnContact is the physics begin-contact callback. It only buffers.
func (r *Resolver) OnContact(c Contact) {
	r.contacts = append(r.contacts, c)
}

// Drain classifies the buffered contacts in arrival order and returns the
// hits they produced. Destruction is only queued, never applied.
func (r *Resolver) Drain() []Hit {
	var hits []Hit
	for _, c := range r.contacts {
		a, b := c.A, c.B
		ca, cb := c.CatA, c.CatB
		if cb == CategoryBullet {
			a, b = b, a
			ca, cb = cb, ca
		}
		if ca != CategoryBullet {
			continue
		}
		switch cb {
		case CategoryWall:
			if bullet, ok := r.registry.ByBody(a).(*Bullet); ok && !bullet.spent {
				bullet.spent = true
				r.Queue(bullet.ID())
			}
		case CategoryEnemy:
			if hit, ok := r.bulletHitsEnemy(a, b); ok {
				hits = append(hits, hit)
			}
		}
	}
	r.contacts = r.contacts[:0]
	return hits
}

func (r *Resolver) bulletHitsEnemy(bulletBody, enemyBody BodyHandle) (Hit, bool) {
	bullet, ok := r.registry.ByBody(bulletBody).(*Bullet)
	if !ok || bullet.spent {
		return Hit{}, false
	}
	bullet.spent = true
	r.Queue(bullet.ID())

	enemy, ok := r.registry.ByBody(enemyBody).(*Enemy)
	if !ok || !enemy.Alive() {
		return Hit{}, false
	}
	killed := enemy.TakeDamage(bullet.Damage)
	if killed {
		r.Queue(enemy.ID())
	}
	return Hit{Enemy: enemy.ID(), Bullet: bullet.ID(), Damage: bullet.Damage, Killed: killed}, true
}

// Queue marks an entity for destruction at the next flush. Duplicates are
// fine.
func (r *Resolver) Queue(id EntityID) {
	r.pending = append(r.pending, id)
}

// Pending returns the number of queued destroy requests, duplicates included.
func (r *Resolver) Pending() int {
	return len(r.pending)
}

// Flush destroys the body and removes the record of every queued id still
// alive, once per id. It returns the ids actually removed.
func (r *Resolver) Flush(physics Physics) []EntityID {
	if len(r.pending) == 0 {
		return nil
	}
	var removed []EntityID
	seen := make(map[EntityID]struct{}, len(r.pending))
	for _, id := range r.pending {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		e := r.registry.Get(id)
		if e == nil {
			continue
		}
		physics.DestroyBody(e.Body())
		r.registry.Remove(id)
		removed = append(removed, id)
	}
	r.pending = r.pending[:0]
	return removed
}

// Reset drops buffered contacts and queued ids.
func (r *Resolver) Reset() {
	r.contacts = r.contacts[:0]
	r.pending = r.pending[:0]
}

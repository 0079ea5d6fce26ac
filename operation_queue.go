package depot

import (
	"slices"
	"sync"
)

type operation struct {
	typ        operationType
	entity     Entity
	bundle     any
	components []Component
}

type operationType int

const (
	opSpawn operationType = iota
	opDespawn
	opInsert
	opAddComponent
	opRemoveComponent
	opNoop operationType = -1
)

// opQueue collects structural changes requested while the store is locked. Enqueueing is safe
// from several goroutines at once.
type opQueue struct {
	mu             sync.Mutex
	spawnOps       []operation
	componentOps   []operation
	despawnOps     []operation
	pendingDespawn map[Entity]struct{}
}

func newOpQueue() opQueue {
	return opQueue{
		pendingDespawn: make(map[Entity]struct{}),
	}
}

func (q *opQueue) enqueueSpawn(e Entity, bundle any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.spawnOps = append(q.spawnOps, operation{typ: opSpawn, entity: e, bundle: bundle})
}

func (q *opQueue) enqueueDespawn(entities []Entity) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range entities {
		if _, queued := q.pendingDespawn[e]; queued {
			continue
		}
		q.pendingDespawn[e] = struct{}{}
		// component changes to an entity that is going away are pointless
		for i := range q.componentOps {
			if q.componentOps[i].entity == e {
				q.componentOps[i].typ = opNoop
			}
		}
		q.despawnOps = append(q.despawnOps, operation{typ: opDespawn, entity: e})
	}
}

func (q *opQueue) enqueueComponentOp(op operation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, despawning := q.pendingDespawn[op.entity]; despawning {
		return
	}
	q.componentOps = append(q.componentOps, op)
}

// processOperationQueue replays queued changes: spawns first, then component changes in the
// order they were requested, despawns last. Operations on entities that died in the meantime
// are skipped, as are adds of components the entity gained and removes of components it lost
// since they were queued. Anything else that fails is logged and skipped.
func (s *Store) processOperationQueue() {
	q := &s.opQueue
	q.mu.Lock()
	spawns := slices.Clone(q.spawnOps)
	componentOps := slices.Clone(q.componentOps)
	despawns := slices.Clone(q.despawnOps)
	q.spawnOps = q.spawnOps[:0]
	q.componentOps = q.componentOps[:0]
	q.despawnOps = q.despawnOps[:0]
	clear(q.pendingDespawn)
	q.mu.Unlock()

	s.Flush()
	for _, op := range spawns {
		if op.bundle == nil {
			continue
		}
		s.logReplayError(op, s.Insert(op.entity, op.bundle))
	}

	for _, op := range componentOps {
		if !s.Contains(op.entity) {
			continue
		}
		var err error
		switch op.typ {
		case opInsert:
			err = s.Insert(op.entity, op.bundle)
		case opAddComponent:
			err = s.replayAdd(op.entity, op.components)
		case opRemoveComponent:
			err = s.replayRemove(op.entity, op.components)
		case opNoop:
			continue
		}
		s.logReplayError(op, err)
	}

	for _, op := range despawns {
		if !s.Contains(op.entity) {
			continue
		}
		s.logReplayError(op, s.Despawn(op.entity))
	}
}

func (s *Store) replayAdd(e Entity, components []Component) error {
	ref, err := s.Entity(e)
	if err != nil {
		return err
	}
	missing := slices.DeleteFunc(slices.Clone(components), func(c Component) bool {
		return ref.ContainsType(c.GoType())
	})
	if len(missing) == 0 {
		return nil
	}
	return s.AddComponent(e, missing...)
}

func (s *Store) replayRemove(e Entity, components []Component) error {
	loc, ok := s.entities.Location(e)
	if !ok {
		return EntityNotFoundError{Entity: e}
	}
	ids := make([]ComponentID, 0, len(components))
	for _, c := range components {
		if id, registered := s.components.IDOf(c.GoType()); registered {
			ids = append(ids, id)
		}
	}
	s.removeIDs(e, loc, ids...)
	return nil
}

func (s *Store) logReplayError(op operation, err error) {
	if err == nil {
		return
	}
	s.logger.Error().
		Err(err).
		Str("entity", op.entity.String()).
		Str("operation", op.typ.String()).
		Msg("queued operation dropped")
}

func (t operationType) String() string {
	switch t {
	case opSpawn:
		return "spawn"
	case opDespawn:
		return "despawn"
	case opInsert:
		return "insert"
	case opAddComponent:
		return "add_component"
	case opRemoveComponent:
		return "remove_component"
	}
	return "noop"
}

// checkQueued validates a queued change against e's current state. Nothing is registered or
// moved, so it is safe while the store is locked and being read from other goroutines.
// Reserved entities have no components yet and only the bundle shape is checked.
func (s *Store) checkQueued(e Entity) (EntityRef, bool, error) {
	if !s.entities.Contains(e) {
		return EntityRef{}, false, EntityNotFoundError{Entity: e}
	}
	loc, ok := s.entities.Location(e)
	if !ok {
		return EntityRef{}, false, nil
	}
	return EntityRef{store: s, id: e, loc: loc}, true, nil
}

// EnqueueSpawn spawns bundle now, or reserves the entity and spawns it on the final Unlock
// when the store is locked. A nil bundle spawns an empty entity.
func (s *Store) EnqueueSpawn(bundle any) (Entity, error) {
	if !s.Locked() {
		if bundle == nil {
			return s.SpawnEmpty()
		}
		return s.Spawn(bundle)
	}
	if bundle != nil {
		if err := checkBundle(bundle); err != nil {
			return Entity{}, err
		}
	}
	e := s.entities.ReserveEntity()
	s.opQueue.enqueueSpawn(e, bundle)
	return e, nil
}

// EnqueueDespawn despawns entities now or once the store is unlocked. Entities that are
// already gone are ignored when replayed.
func (s *Store) EnqueueDespawn(entities ...Entity) error {
	if !s.Locked() {
		for _, e := range entities {
			if err := s.Despawn(e); err != nil {
				return err
			}
		}
		return nil
	}
	s.opQueue.enqueueDespawn(entities)
	return nil
}

// EnqueueInsert inserts bundle into e now or once the store is unlocked.
func (s *Store) EnqueueInsert(e Entity, bundle any) error {
	if !s.Locked() {
		return s.Insert(e, bundle)
	}
	if err := checkBundle(bundle); err != nil {
		return err
	}
	if _, _, err := s.checkQueued(e); err != nil {
		return err
	}
	s.opQueue.enqueueComponentOp(operation{typ: opInsert, entity: e, bundle: bundle})
	return nil
}

// EnqueueAddComponent adds zero-valued components to e now or once the store is unlocked.
// Adding a component e already has is an error; one that e gains before the replay is skipped.
func (s *Store) EnqueueAddComponent(e Entity, components ...Component) error {
	if !s.Locked() {
		return s.AddComponent(e, components...)
	}
	ref, located, err := s.checkQueued(e)
	if err != nil {
		return err
	}
	for _, c := range components {
		if located && ref.ContainsType(c.GoType()) {
			return ComponentExistsError{Component: c}
		}
	}
	s.opQueue.enqueueComponentOp(operation{typ: opAddComponent, entity: e, components: components})
	return nil
}

// EnqueueRemove removes components from e now or once the store is unlocked. Removing a
// component e lacks is an error; one that e loses before the replay is skipped.
func (s *Store) EnqueueRemove(e Entity, components ...Component) error {
	if !s.Locked() {
		return s.Remove(e, components...)
	}
	ref, located, err := s.checkQueued(e)
	if err != nil {
		return err
	}
	for _, c := range components {
		if located && !ref.ContainsType(c.GoType()) {
			return ComponentNotFoundError{Component: c}
		}
	}
	s.opQueue.enqueueComponentOp(operation{typ: opRemoveComponent, entity: e, components: components})
	return nil
}

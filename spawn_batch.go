package depot

import (
	"iter"
	"reflect"

	"github.com/rotisserie/eris"
)

// SpawnBatchIter spawns one entity per bundle pulled from its source and yields their ids in
// source order. The store is locked while the iterator is open, so structural changes from
// elsewhere are rejected or deferred through the Enqueue methods.
//
// Closing the iterator, or breaking out of Entities, before the source is exhausted still
// spawns every remaining bundle. The iterator is single pass.
type SpawnBatchIter struct {
	store   *Store
	spawner *bundleSpawner
	next    func() (bundleSource, bool, error)
	stop    func()
	hint    int
	err     error
	done    bool
}

func (s *Store) newSpawnBatch(info *bundleInfo, sizeHint int, next func() (bundleSource, bool, error), stop func()) *SpawnBatchIter {
	s.Flush()
	spawner := s.newBundleSpawner(info)
	if sizeHint > 0 {
		s.entities.Reserve(sizeHint)
		spawner.reserveStorage(sizeHint)
	}
	s.Lock()
	return &SpawnBatchIter{
		store:   s,
		spawner: spawner,
		next:    next,
		stop:    stop,
		hint:    max(sizeHint, 0),
	}
}

// SpawnBatch returns an iterator spawning one entity per element of bundles.
func SpawnBatch[B any](s *Store, bundles []B) (*SpawnBatchIter, error) {
	info, err := batchBundleInfo[B](s)
	if err != nil {
		return nil, err
	}
	i := 0
	next := func() (bundleSource, bool, error) {
		if i >= len(bundles) {
			return nil, false, nil
		}
		v, err := bundleValue(bundles[i])
		i++
		if err != nil {
			return nil, false, err
		}
		return info.source(v), true, nil
	}
	return s.newSpawnBatch(info, len(bundles), next, func() {}), nil
}

// SpawnBatchSeq is SpawnBatch over a sequence whose length is only estimated by sizeHint.
func SpawnBatchSeq[B any](s *Store, bundles iter.Seq[B], sizeHint int) (*SpawnBatchIter, error) {
	info, err := batchBundleInfo[B](s)
	if err != nil {
		return nil, err
	}
	pull, stop := iter.Pull(bundles)
	next := func() (bundleSource, bool, error) {
		b, ok := pull()
		if !ok {
			return nil, false, nil
		}
		v, err := bundleValue(b)
		if err != nil {
			return nil, false, err
		}
		return info.source(v), true, nil
	}
	return s.newSpawnBatch(info, sizeHint, next, stop), nil
}

// SpawnBatchDynamic spawns one entity per row of erased values, each row holding one value per
// id. A row that does not match ids stops the batch before anything of it is written.
func SpawnBatchDynamic(s *Store, ids []ComponentID, rows iter.Seq[[]any], sizeHint int) (*SpawnBatchIter, error) {
	if s.Locked() {
		return nil, LockedStorageError{}
	}
	info, err := s.bundles.dynamicInfo(s.components, ids)
	if err != nil {
		return nil, err
	}
	pull, stop := iter.Pull(rows)
	next := func() (bundleSource, bool, error) {
		row, ok := pull()
		if !ok {
			return nil, false, nil
		}
		src, err := info.dynamicSource(s.components, row)
		if err != nil {
			return nil, false, err
		}
		return src, true, nil
	}
	return s.newSpawnBatch(info, sizeHint, next, stop), nil
}

func batchBundleInfo[B any](s *Store) (*bundleInfo, error) {
	if s.Locked() {
		return nil, LockedStorageError{}
	}
	typ := reflect.TypeFor[B]()
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() == reflect.Interface {
		return nil, BundleError{Bundle: typ, Reason: "batch bundles need a concrete type"}
	}
	return s.bundles.infoFor(s.components, typ)
}

// Next spawns the next entity. It reports false once the source is exhausted or a bundle
// failed; Err tells the two apart.
func (it *SpawnBatchIter) Next() (Entity, bool) {
	if it.done {
		return Entity{}, false
	}
	src, ok, err := it.next()
	if err != nil || !ok {
		it.err = err
		it.finish()
		return Entity{}, false
	}
	if it.store.entities.NeedsFlush() {
		it.store.Flush()
	}
	e := it.store.entities.Alloc()
	it.spawner.spawnNonExistent(e, src)
	if it.hint > 0 {
		it.hint--
	}
	return e, true
}

// Err returns the error that stopped the batch early, if any.
func (it *SpawnBatchIter) Err() error {
	return it.err
}

// Len is the number of bundles the iterator still expects to spawn, as far as it knows.
func (it *SpawnBatchIter) Len() int {
	if it.done {
		return 0
	}
	return it.hint
}

// Entities yields each spawned entity. Stopping early drains the rest.
func (it *SpawnBatchIter) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		defer it.Close()
		for {
			e, ok := it.Next()
			if !ok || !yield(e) {
				return
			}
		}
	}
}

// Collect spawns everything and returns the ids in source order.
func (it *SpawnBatchIter) Collect() ([]Entity, error) {
	out := make([]Entity, 0, it.Len())
	for e := range it.Entities() {
		out = append(out, e)
	}
	return out, it.Err()
}

// Close spawns every bundle not consumed yet and unlocks the store. Closing twice is a no-op.
func (it *SpawnBatchIter) Close() error {
	drained := 0
	for !it.done {
		if _, ok := it.Next(); ok {
			drained++
		}
	}
	if drained > 0 {
		it.store.logger.Debug().Int("entities", drained).Msg("spawn batch drained on close")
	}
	return it.Err()
}

func (it *SpawnBatchIter) finish() {
	it.done = true
	it.hint = 0
	it.stop()
	it.store.Unlock()
}

// SpawnAll spawns one entity per element of bundles and returns their ids in order.
func SpawnAll[B any](s *Store, bundles []B) ([]Entity, error) {
	batch, err := SpawnBatch(s, bundles)
	if err != nil {
		return nil, err
	}
	entities, err := batch.Collect()
	if err != nil {
		return entities, eris.Wrap(err, "spawn batch stopped early")
	}
	return entities, nil
}

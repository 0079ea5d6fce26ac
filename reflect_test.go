package depot

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Clock struct {
	Ticks int     `yaml:"ticks"`
	Scale float64 `yaml:"scale"`
}

func TestReflectComponentRead(t *testing.T) {
	store := newTestStore()
	e, err := store.Spawn(Kinematics{Pos: Position{X: 1, Y: 2}})
	require.NoError(t, err)
	ref, _ := store.Entity(e)

	rc := ReflectComponentFor[Position]()
	assert.Equal(t, reflect.TypeFor[Position](), rc.Type())

	v, ok := rc.Reflect(ref)
	require.True(t, ok)
	assert.Equal(t, Position{X: 1, Y: 2}, v.Interface())

	_, ok = ReflectComponentFor[Health]().Reflect(ref)
	assert.False(t, ok, "absent component")
	_, ok = ReflectComponentFor[Tracked]().Reflect(ref)
	assert.False(t, ok, "type unknown to the store")

	m, err := store.EntityMut(e)
	require.NoError(t, err)
	mv, ok := rc.ReflectMut(m)
	require.True(t, ok)
	mv.FieldByName("X").SetFloat(5)

	cell, ok := store.UnsafeEntityCell(e)
	require.True(t, ok)
	uv, ok := rc.ReflectUncheckedMut(cell)
	require.True(t, ok)
	assert.Equal(t, 5.0, uv.FieldByName("X").Float())

	p, ok := GetUnchecked[Position](cell)
	require.True(t, ok)
	assert.Equal(t, 5.0, p.X)
}

func TestReflectComponentInsert(t *testing.T) {
	rc := ReflectComponentFor[Health]()

	t.Run("adds when absent", func(t *testing.T) {
		store := newTestStore()
		e, err := store.Spawn(Position{})
		require.NoError(t, err)
		before, _ := store.Entity(e)

		m, _ := store.EntityMut(e)
		require.NoError(t, rc.Insert(m, Health{Current: 3, Max: 5}))

		ref, _ := store.Entity(e)
		assert.NotSame(t, before.Archetype(), ref.Archetype())
		hp, ok := Get[Health](ref)
		require.True(t, ok)
		assert.Equal(t, Health{Current: 3, Max: 5}, *hp)
		assert.Equal(t, ref.Location(), m.Location())
	})

	t.Run("replaces when present", func(t *testing.T) {
		store := newTestStore()
		e, err := store.Spawn(Health{Current: 1, Max: 9})
		require.NoError(t, err)

		m, _ := store.EntityMut(e)
		require.NoError(t, rc.Insert(m, map[string]any{"Current": 2}))

		ref, _ := store.Entity(e)
		hp, _ := Get[Health](ref)
		assert.Equal(t, Health{Current: 2}, *hp, "insert starts from a zero value")
	})

	t.Run("invalid source writes nothing", func(t *testing.T) {
		store := newTestStore()
		e, err := store.Spawn(Position{})
		require.NoError(t, err)

		m, _ := store.EntityMut(e)
		err = rc.Insert(m, "not a health")
		assert.IsType(t, ApplyError{}, err)

		ref, _ := store.Entity(e)
		assert.False(t, Has[Health](ref))
	})

	t.Run("registers the type with a new store", func(t *testing.T) {
		store := newTestStore()
		e, err := store.SpawnEmpty()
		require.NoError(t, err)
		_, known := ComponentIDFor[Clock](store)
		require.False(t, known)

		m, _ := store.EntityMut(e)
		require.NoError(t, ReflectComponentFor[Clock]().Insert(m, Clock{Ticks: 4}))
		ref, _ := store.Entity(e)
		c, ok := Get[Clock](ref)
		require.True(t, ok)
		assert.Equal(t, 4, c.Ticks)
	})
}

func TestReflectComponentApply(t *testing.T) {
	rc := ReflectComponentFor[Health]()
	store := newTestStore()
	e, err := store.Spawn(Position{})
	require.NoError(t, err)
	m, _ := store.EntityMut(e)

	err = rc.Apply(m, Health{Current: 1})
	assert.IsType(t, ComponentNotFoundError{}, err)

	require.NoError(t, rc.ApplyOrInsert(m, Health{Current: 1, Max: 10}))
	require.NoError(t, rc.ApplyOrInsert(m, map[string]any{"current": 7}))
	require.NoError(t, rc.Apply(m, map[string]any{"Max": int64(20)}))

	hp, _ := GetMut[Health](m)
	assert.Equal(t, Health{Current: 7, Max: 20}, *hp, "apply keeps fields the source omits")
}

func TestReflectComponentRemove(t *testing.T) {
	rc := ReflectComponentFor[Velocity]()
	store := newTestStore()
	e, err := store.Spawn(Kinematics{})
	require.NoError(t, err)
	before, _ := store.Entity(e)

	m, _ := store.EntityMut(e)
	require.NoError(t, rc.Remove(m))

	ref, _ := store.Entity(e)
	assert.False(t, Has[Velocity](ref))
	assert.True(t, Has[Position](ref))
	assert.NotSame(t, before.Archetype(), ref.Archetype())

	afterFirst := ref.Archetype()
	require.NoError(t, rc.Remove(m), "removing an absent component is a no-op")
	ref, _ = store.Entity(e)
	assert.Same(t, afterFirst, ref.Archetype())

	require.NoError(t, ReflectComponentFor[Clock]().Remove(m), "type unknown to the store")

	require.NoError(t, m.Despawn())
	assert.IsType(t, EntityNotFoundError{}, rc.Remove(m))
}

func TestReflectComponentLockedStore(t *testing.T) {
	rc := ReflectComponentFor[Health]()
	store := newTestStore()
	e, err := store.Spawn(Position{})
	require.NoError(t, err)
	m, _ := store.EntityMut(e)

	store.Lock()
	assert.IsType(t, LockedStorageError{}, rc.Insert(m, Health{}))
	assert.IsType(t, LockedStorageError{}, rc.Remove(m))
	store.Unlock()
}

func TestReflectComponentCopy(t *testing.T) {
	rc := ReflectComponentFor[Health]()
	src := newTestStore()
	dst := newTestStore()

	a, err := src.Spawn(Health{Current: 4, Max: 8})
	require.NoError(t, err)
	b, err := dst.Spawn(Position{})
	require.NoError(t, err)

	require.NoError(t, rc.Copy(src, dst, a, b))
	ref, _ := dst.Entity(b)
	hp, ok := Get[Health](ref)
	require.True(t, ok)
	assert.Equal(t, Health{Current: 4, Max: 8}, *hp)

	// within one store
	c, err := src.Spawn(Health{})
	require.NoError(t, err)
	require.NoError(t, rc.Copy(src, src, a, c))
	ref, _ = src.Entity(c)
	hp, _ = Get[Health](ref)
	assert.Equal(t, 4, hp.Current)

	err = ReflectComponentFor[Velocity]().Copy(src, dst, a, b)
	assert.IsType(t, ComponentNotFoundError{}, err)
}

func TestReflectResource(t *testing.T) {
	rr := ReflectResourceFor[Clock]()
	store := newTestStore()

	_, ok := rr.Reflect(store)
	assert.False(t, ok)
	assert.IsType(t, ResourceNotFoundError{}, rr.Apply(store, Clock{}))

	require.NoError(t, rr.Insert(store, map[string]any{"ticks": 3, "scale": 0.5}))
	clock, ok := Resource[Clock](store)
	require.True(t, ok)
	assert.Equal(t, Clock{Ticks: 3, Scale: 0.5}, *clock)

	require.NoError(t, rr.Apply(store, map[string]any{"ticks": 9}))
	assert.Equal(t, Clock{Ticks: 9, Scale: 0.5}, *clock, "stored value is updated in place")

	v, ok := rr.Reflect(store)
	require.True(t, ok)
	v.FieldByName("Scale").SetFloat(2)
	assert.Equal(t, 2.0, clock.Scale)

	other := newTestStore()
	require.NoError(t, rr.Copy(store, other))
	copied, ok := Resource[Clock](other)
	require.True(t, ok)
	assert.Equal(t, *clock, *copied)
	assert.NotSame(t, clock, copied)

	rr.Remove(store)
	assert.False(t, HasResource[Clock](store))
	assert.IsType(t, ResourceNotFoundError{}, rr.Copy(store, other))

	require.NoError(t, rr.ApplyOrInsert(store, Clock{Ticks: 1}))
	require.NoError(t, rr.ApplyOrInsert(store, map[string]any{"scale": 3}))
	clock, _ = Resource[Clock](store)
	assert.Equal(t, Clock{Ticks: 1, Scale: 3}, *clock)
}

func TestApplyValue(t *testing.T) {
	type inner struct {
		A int
	}
	type target struct {
		Name   string `yaml:"name"`
		Count  uint8
		Ratio  float32
		Tags   []string
		Pair   [2]int
		Limits map[string]int
		Inner  *inner
		Flag   bool
	}

	tests := []struct {
		name    string
		src     any
		want    target
		fails   bool
		errPath string
	}{
		{
			name: "struct from map",
			src: map[string]any{
				"name":    "n",
				"Count":   7,
				"ratio":   0.5,
				"Tags":    []any{"a", "b"},
				"Pair":    []any{1, 2},
				"Limits":  map[string]any{"x": 1},
				"Inner":   map[string]any{"A": 3},
				"Flag":    true,
				"unknown": 1,
				"hidden":  5,
			},
			want: target{
				Name:   "n",
				Count:  7,
				Ratio:  0.5,
				Tags:   []string{"a", "b"},
				Pair:   [2]int{1, 2},
				Limits: map[string]int{"x": 1},
				Inner:  &inner{A: 3},
				Flag:   true,
			},
		},
		{
			name: "struct from struct",
			src:  target{Name: "copy", Count: 1},
			want: target{Name: "copy", Count: 1},
		},
		{
			name: "pointer source",
			src:  &target{Name: "ptr"},
			want: target{Name: "ptr"},
		},
		{
			name:    "overflow",
			src:     map[string]any{"Count": 300},
			fails:   true,
			errPath: "Count",
		},
		{
			name:    "negative to unsigned",
			src:     map[string]any{"Count": -1},
			fails:   true,
			errPath: "Count",
		},
		{
			name:    "fraction to integer",
			src:     map[string]any{"Inner": map[string]any{"A": 1.5}},
			fails:   true,
			errPath: "Inner.A",
		},
		{
			name:    "wrong element type",
			src:     map[string]any{"Tags": []any{"a", 2}},
			fails:   true,
			errPath: "Tags[1]",
		},
		{
			name:    "array length mismatch",
			src:     map[string]any{"Pair": []any{1}},
			fails:   true,
			errPath: "Pair",
		},
		{
			name:    "not a struct",
			src:     42,
			fails:   true,
			errPath: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got target
			err := ApplyValue(reflect.ValueOf(&got).Elem(), tt.src)
			if tt.fails {
				var applyErr ApplyError
				require.ErrorAs(t, err, &applyErr)
				assert.Equal(t, tt.errPath, applyErr.Path)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyValueNumbers(t *testing.T) {
	var f float64
	require.NoError(t, ApplyValue(reflect.ValueOf(&f).Elem(), 3))
	assert.Equal(t, 3.0, f)

	var i int32
	require.NoError(t, ApplyValue(reflect.ValueOf(&i).Elem(), 2.0))
	assert.Equal(t, int32(2), i)
	assert.Error(t, ApplyValue(reflect.ValueOf(&i).Elem(), int64(1)<<40))

	var u uint
	require.NoError(t, ApplyValue(reflect.ValueOf(&u).Elem(), 5))
	assert.Equal(t, uint(5), u)

	var s string
	assert.Error(t, ApplyValue(reflect.ValueOf(&s).Elem(), 5))
	assert.Error(t, ApplyValue(reflect.ValueOf(&s).Elem(), nil))
}

func TestApplyMapKeepsExistingEntries(t *testing.T) {
	m := map[string]Position{"a": {X: 1, Y: 1}}
	err := ApplyValue(reflect.ValueOf(&m).Elem(), map[string]any{
		"a": map[string]any{"X": 5},
		"b": map[string]any{"Y": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]Position{"a": {X: 5, Y: 1}, "b": {Y: 2}}, m)
}

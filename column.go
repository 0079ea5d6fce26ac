package depot

import (
	"reflect"
	"unsafe"
)

// column is the contiguous storage for one component inside an archetype. Values are kept in
// a typed slice so the garbage collector sees the pointers they hold; all writes go through
// reflect so they use typed moves.
type column struct {
	typ  reflect.Type
	size uintptr
	drop func(unsafe.Pointer)

	data reflect.Value // []T, len(data) is the capacity
	base unsafe.Pointer
	len  int
}

func newColumn(info *ComponentInfo, capacity int) *column {
	c := &column{
		typ:  info.typ,
		size: info.typ.Size(),
		drop: info.drop,
	}
	c.setData(reflect.MakeSlice(reflect.SliceOf(info.typ), capacity, capacity))
	return c
}

func (c *column) setData(data reflect.Value) {
	c.data = data
	c.base = data.UnsafePointer()
}

func (c *column) capacity() int {
	return c.data.Len()
}

// reserve makes room for additional rows. Pointers handed out before a reserve that grows the
// column are invalidated.
func (c *column) reserve(additional int) {
	needed := c.len + additional
	if needed <= c.capacity() {
		return
	}
	newCap := max(needed, 2*c.capacity(), 4)
	grown := reflect.MakeSlice(c.data.Type(), newCap, newCap)
	reflect.Copy(grown, c.data.Slice(0, c.len))
	c.setData(grown)
}

// pushZero appends a zero row and returns its index.
func (c *column) pushZero() uint32 {
	c.reserve(1)
	row := c.len
	c.len++
	return uint32(row)
}

func (c *column) ptr(row uint32) unsafe.Pointer {
	return unsafe.Add(c.base, uintptr(row)*c.size)
}

func (c *column) value(row uint32) reflect.Value {
	return c.data.Index(int(row))
}

func (c *column) set(row uint32, v reflect.Value) {
	c.data.Index(int(row)).Set(v)
}

// replace drops the old value before writing v.
func (c *column) replace(row uint32, v reflect.Value) {
	c.dropAt(row)
	c.set(row, v)
}

func (c *column) dropAt(row uint32) {
	if c.drop != nil {
		c.drop(c.ptr(row))
	}
}

// moveTo copies row into dst at dstRow. The source slot is left for swapRemove to clear.
func (c *column) moveTo(row uint32, dst *column, dstRow uint32) {
	dst.data.Index(int(dstRow)).Set(c.data.Index(int(row)))
}

// swapRemove moves the last row into row and clears the vacated slot. It does not drop.
func (c *column) swapRemove(row uint32) {
	last := uint32(c.len - 1)
	if row != last {
		c.data.Index(int(row)).Set(c.data.Index(int(last)))
	}
	c.data.Index(int(last)).SetZero()
	c.len--
}

func (c *column) clear() {
	for row := range uint32(c.len) {
		c.dropAt(row)
		c.data.Index(int(row)).SetZero()
	}
	c.len = 0
}

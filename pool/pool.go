// Package pool provides a fixed-capacity pool of pre-built objects. Objects
// are created once at construction; acquire and release only flip an in-use
// flag, so nothing is allocated or freed at runtime.
//
// A Pool is not synchronized. It is meant to be driven from the single thread
// that opens and closes streams, or behind an external lock.
package pool

// Pool holds capacity objects of type T plus a parallel in-use set.
type Pool[T comparable] struct {
	objects []T
	inUse   []bool
}

// New builds a pool and fills every slot with factory(i).
func New[T comparable](capacity int, factory func(i int) T) *Pool[T] {
	p := &Pool[T]{
		objects: make([]T, capacity),
		inUse:   make([]bool, capacity),
	}
	for i := range p.objects {
		p.objects[i] = factory(i)
	}
	return p
}

// Acquire marks the lowest free slot as used and returns its object.
// It reports false when every slot is taken.
func (p *Pool[T]) Acquire() (T, bool) {
	for i, used := range p.inUse {
		if !used {
			p.inUse[i] = true
			return p.objects[i], true
		}
	}

	var zero T
	return zero, false
}

// Release returns obj to the pool. Objects that are not members, or not in
// use, are ignored and reported with false.
func (p *Pool[T]) Release(obj T) bool {
	for i, o := range p.objects {
		if o == obj && p.inUse[i] {
			p.inUse[i] = false
			return true
		}
	}
	return false
}

// Contains reports whether obj belongs to this pool.
func (p *Pool[T]) Contains(obj T) bool {
	for _, o := range p.objects {
		if o == obj {
			return true
		}
	}
	return false
}

// Capacity returns the fixed number of slots.
func (p *Pool[T]) Capacity() int {
	return len(p.objects)
}

// InUse returns the number of acquired slots.
func (p *Pool[T]) InUse() int {
	n := 0
	for _, used := range p.inUse {
		if used {
			n++
		}
	}
	return n
}

// Each calls fn for every acquired object until fn returns false.
func (p *Pool[T]) Each(fn func(obj T) bool) {
	for i, used := range p.inUse {
		if used && !fn(p.objects[i]) {
			return
		}
	}
}

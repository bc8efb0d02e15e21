package pool

import "testing"

type slot struct {
	id int
}

func newSlots(n int) *Pool[*slot] {
	return New(n, func(i int) *slot { return &slot{id: i} })
}

func TestPool_Exhaustion(t *testing.T) {
	p := newSlots(3)

	for i := 0; i < 3; i++ {
		s, ok := p.Acquire()
		if !ok {
			t.Fatalf("Acquire %d failed", i)
		}
		if s.id != i {
			t.Errorf("Acquire %d returned slot %d, want lowest free", i, s.id)
		}
	}

	if _, ok := p.Acquire(); ok {
		t.Fatal("Acquire on a full pool must fail")
	}
	if p.InUse() != 3 {
		t.Errorf("InUse = %d, want 3", p.InUse())
	}
}

func TestPool_ReleaseAndReuse(t *testing.T) {
	p := newSlots(2)
	a, _ := p.Acquire()
	b, _ := p.Acquire()

	if !p.Release(a) {
		t.Fatal("Release of a member failed")
	}
	if p.Release(a) {
		t.Error("Second release of the same object must report false")
	}

	c, ok := p.Acquire()
	if !ok {
		t.Fatal("Acquire after release failed")
	}
	if c != a {
		t.Errorf("Expected the freed slot to be reused")
	}
	if c == b {
		t.Error("Acquire returned a slot still in use")
	}
}

func TestPool_ReleaseForeign(t *testing.T) {
	p := newSlots(1)
	foreign := &slot{id: 99}

	if p.Release(foreign) {
		t.Error("Release of a non-member must report false")
	}
	if p.Contains(foreign) {
		t.Error("Contains reported a non-member")
	}
}

func TestPool_Each(t *testing.T) {
	p := newSlots(4)
	p.Acquire()
	p.Acquire()

	seen := 0
	p.Each(func(*slot) bool {
		seen++
		return true
	})
	if seen != 2 {
		t.Errorf("Each visited %d objects, want 2", seen)
	}
}

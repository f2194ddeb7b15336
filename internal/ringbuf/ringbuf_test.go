package ringbuf

import "testing"

// TestAppendBelowCapacity verifies insertion order before wrap-around
func TestAppendBelowCapacity(t *testing.T) {
	b := New[int](5)
	b.Append(1)
	b.Append(2)
	b.Append(3)

	if b.Len() != 3 {
		t.Errorf("Len should be 3, got %d", b.Len())
	}

	all := b.All()
	for i, want := range []int{1, 2, 3} {
		if all[i] != want {
			t.Errorf("All()[%d] should be %d, got %d", i, want, all[i])
		}
	}
}

// TestAppendOverwritesOldest verifies the oldest element is dropped at capacity
func TestAppendOverwritesOldest(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 5; i++ {
		b.Append(i)
	}

	if b.Len() != 3 {
		t.Errorf("Len should stay at capacity 3, got %d", b.Len())
	}

	all := b.All()
	for i, want := range []int{3, 4, 5} {
		if all[i] != want {
			t.Errorf("All()[%d] should be %d, got %d", i, want, all[i])
		}
	}
}

// TestLatest verifies the most-recent window is returned oldest-first
func TestLatest(t *testing.T) {
	b := New[int](10)
	for i := 1; i <= 7; i++ {
		b.Append(i)
	}

	last3 := b.Latest(3)
	for i, want := range []int{5, 6, 7} {
		if last3[i] != want {
			t.Errorf("Latest(3)[%d] should be %d, got %d", i, want, last3[i])
		}
	}

	// Asking for more than stored returns everything
	if got := len(b.Latest(100)); got != 7 {
		t.Errorf("Latest(100) should return 7 elements, got %d", got)
	}

	if b.Latest(0) != nil {
		t.Error("Latest(0) should return nil")
	}
}

// TestClear verifies the buffer resets cleanly
func TestClear(t *testing.T) {
	b := New[string](4)
	b.Append("a")
	b.Append("b")
	b.Clear()

	if b.Len() != 0 {
		t.Errorf("Len after Clear should be 0, got %d", b.Len())
	}
	b.Append("c")
	if all := b.All(); len(all) != 1 || all[0] != "c" {
		t.Errorf("buffer after Clear+Append should contain only \"c\", got %v", all)
	}
}

package uid

import "testing"

func TestSnowflakeGeneratesIncreasingIDs(t *testing.T) {
	gen, err := NewSnowflake()
	if err != nil {
		t.Fatalf("failed to build generator: %v", err)
	}

	prev := gen.Generate()
	for i := 0; i < 100; i++ {
		next := gen.Generate()
		if next <= prev {
			t.Fatalf("expected increasing IDs, got %d after %d", next, prev)
		}
		prev = next
	}
}

func TestUUIDGeneratesUniqueStrings(t *testing.T) {
	gen := NewUUID()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := gen.Generate()
		if len(id) != 36 {
			t.Fatalf("expected canonical uuid, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate uuid %q", id)
		}
		seen[id] = true
	}
}

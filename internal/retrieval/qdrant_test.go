package retrieval

import "testing"

// TestStalePointIDs verifies the stale-point computation used when a rebuild
// writes a smaller corpus into an existing collection.
func TestStalePointIDs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		maxID    int
		existing int
		want     []uint64
	}{
		{"fresh collection", 2, 0, nil},
		{"same size rebuild", 2, 3, nil},
		{"grown corpus", 4, 3, nil},
		{"shrunk corpus", 1, 4, []uint64{2, 3}},
		{"empty corpus into populated collection", -1, 2, []uint64{0, 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := stalePointIDs(tc.maxID, tc.existing)
			if len(got) != len(tc.want) {
				t.Fatalf("stalePointIDs(%d, %d) = %v, want %v", tc.maxID, tc.existing, got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("stalePointIDs(%d, %d)[%d] = %d, want %d", tc.maxID, tc.existing, i, got[i], tc.want[i])
				}
			}
		})
	}
}

package partition

import "testing"

func TestDisjointClusterUnionFindPathCompression(t *testing.T) {
	dcu := newDisjointClusterUnion(map[int64]float64{1: 10, 2: 20, 3: 30})
	dcu.union(1, 2) // keeps 2
	dcu.union(2, 3) // keeps 3

	for _, id := range []int64{1, 2, 3} {
		if got := dcu.find(id); got != 3 {
			t.Fatalf("find(%d) = %d, want 3", id, got)
		}
	}
	if dcu.count() != 1 {
		t.Fatalf("count() = %d, want 1", dcu.count())
	}
}

func TestUnionKeepsLargerRepresentativeAndSumsSize(t *testing.T) {
	dcu := newDisjointClusterUnion(map[int64]float64{5: 10, 9: 20})
	rep := dcu.union(5, 9)
	if rep != 9 {
		t.Fatalf("union(5, 9) = %d, want 9", rep)
	}
	c := dcu.clusters[9]
	if c.sizeKB != 30 {
		t.Fatalf("sizeKB = %v, want 30", c.sizeKB)
	}
	if len(c.subregionIDs) != 2 {
		t.Fatalf("subregionIDs = %v, want 2 members", c.subregionIDs)
	}
}

func TestSmallestUnfinishedTieBreaksOnID(t *testing.T) {
	dcu := newDisjointClusterUnion(map[int64]float64{3: 50, 1: 50, 2: 60})
	if got := dcu.smallestUnfinished(); got != 1 {
		t.Fatalf("smallestUnfinished() = %d, want 1 (lowest id among tied sizes)", got)
	}
}

func TestMarkFinishedExcludesFromSmallestUnfinished(t *testing.T) {
	dcu := newDisjointClusterUnion(map[int64]float64{1: 10, 2: 20})
	dcu.markFinished(1)
	if got := dcu.smallestUnfinished(); got != 2 {
		t.Fatalf("smallestUnfinished() = %d, want 2 (1 is finished)", got)
	}
	dcu.markFinished(2)
	if got := dcu.smallestUnfinished(); got != 0 {
		t.Fatalf("smallestUnfinished() = %d, want 0 (all finished)", got)
	}
}

func TestSortedIDsAscending(t *testing.T) {
	dcu := newDisjointClusterUnion(map[int64]float64{30: 1, 10: 1, 20: 1})
	got := dcu.sortedIDs()
	want := []int64{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("sortedIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortedIDs() = %v, want %v", got, want)
		}
	}
}

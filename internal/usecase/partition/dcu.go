package partition

// cluster is one or more subregions merged by golden splitting. sizeKB is
// the sum of every member's predicted mwm size; subregionIDs accumulates in
// merge order, not sorted (callers sort before persisting).
type cluster struct {
	representative int64
	subregionIDs   []int64
	sizeKB         float64
	finished       bool
}

// disjointClusterUnion is a union-find over subregion ids, one cluster per
// root. Merging always keeps the larger id as representative so the
// outcome of a sequence of merges does not depend on iteration order,
// mirroring auto_split.py's DisjointClusterUnion.union.
type disjointClusterUnion struct {
	parent   map[int64]int64
	clusters map[int64]*cluster
}

func newDisjointClusterUnion(sizeByID map[int64]float64) *disjointClusterUnion {
	dcu := &disjointClusterUnion{
		parent:   make(map[int64]int64, len(sizeByID)),
		clusters: make(map[int64]*cluster, len(sizeByID)),
	}
	for id, size := range sizeByID {
		dcu.parent[id] = id
		dcu.clusters[id] = &cluster{
			representative: id,
			subregionIDs:   []int64{id},
			sizeKB:         size,
		}
	}
	return dcu
}

// find returns the current representative of id's cluster, compressing the
// path as it walks up.
func (d *disjointClusterUnion) find(id int64) int64 {
	root := id
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for id != root {
		next := d.parent[id]
		d.parent[id] = root
		id = next
	}
	return root
}

func (d *disjointClusterUnion) clusterOf(id int64) *cluster {
	return d.clusters[d.find(id)]
}

func (d *disjointClusterUnion) count() int {
	return len(d.clusters)
}

// union merges the clusters represented by a and b, keeping the larger id
// as the surviving representative, and returns it.
func (d *disjointClusterUnion) union(a, b int64) int64 {
	keep, drop := a, b
	if drop > keep {
		keep, drop = drop, keep
	}
	kept := d.clusters[keep]
	dropped := d.clusters[drop]
	kept.subregionIDs = append(kept.subregionIDs, dropped.subregionIDs...)
	kept.sizeKB += dropped.sizeKB
	delete(d.clusters, drop)
	d.parent[drop] = keep
	return keep
}

// smallestUnfinished returns the id of the unfinished cluster with the
// smallest sizeKB, ties broken by the lowest representative id, or 0 if
// every cluster is finished.
func (d *disjointClusterUnion) smallestUnfinished() int64 {
	var best int64
	bestSize := 0.0
	found := false
	for id, c := range d.clusters {
		if c.finished {
			continue
		}
		if !found || c.sizeKB < bestSize || (c.sizeKB == bestSize && id < best) {
			best, bestSize, found = id, c.sizeKB, true
		}
	}
	if !found {
		return 0
	}
	return best
}

func (d *disjointClusterUnion) markFinished(id int64) {
	d.clusters[id].finished = true
}

// sortedIDs returns the surviving representative ids in ascending order,
// used to emit cluster rows deterministically.
func (d *disjointClusterUnion) sortedIDs() []int64 {
	ids := make([]int64, 0, len(d.clusters))
	for id := range d.clusters {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

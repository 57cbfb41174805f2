package osmxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/mapborders/partitioner/internal/domain"
)

// ring pairs a polygon ring's role with the node ids already allocated for
// its points, in ring order (closed: first id equals last).
type ring struct {
	role    string
	nodeIDs []int64
}

// Encode writes regions as an OSM-XML 0.6 document to w. Coordinates are
// deduplicated into one <node> per distinct point; each border becomes
// either a single <way> (single outer ring, no existing way already
// represents it, and forceMulti is false) or a <relation type="multipolygon">
// with outer/inner members, rings deduplicated across regions by their
// unordered node-id set. Synthesized way ids run negative to stay disjoint
// from region ids; the absolute value of a region's id becomes the id of
// its single way or its relation.
func Encode(w io.Writer, regions []*domain.Region, forceMulti bool) error {
	pool := &nodePool{ids: make(map[orb.Point]int64)}
	ways := make(map[string]int64)
	nextWayID := int64(-1)

	doc := document{Version: "0.6", Upload: "false"}

	for _, region := range regions {
		geom, err := wkb.Unmarshal(region.Geom)
		if err != nil {
			return fmt.Errorf("unmarshal region %d geometry: %w", region.ID, err)
		}
		rings, err := ringsOf(pool, geom)
		if err != nil {
			return fmt.Errorf("region %d: %w", region.ID, err)
		}
		if len(rings) == 0 {
			continue
		}

		regionID := absInt64(region.ID)
		key := ringKey(rings[0].nodeIDs)
		if _, exists := ways[key]; !forceMulti && len(rings) == 1 && !exists {
			ways[key] = regionID
			doc.Ways = append(doc.Ways, xmlWay{
				ID: regionID, Visible: true, Version: 1,
				Tags: regionTags(region),
				Nds:  ndsOf(rings[0].nodeIDs),
			})
			continue
		}

		relation := xmlRelation{
			ID: regionID, Visible: true, Version: 1,
			Tags: append([]xmlTag{{K: tagType, V: valMultipolygon}}, regionTags(region)...),
		}
		for _, r := range rings {
			rkey := ringKey(r.nodeIDs)
			wayID, ok := ways[rkey]
			if !ok {
				wayID = nextWayID
				nextWayID--
				ways[rkey] = wayID
				doc.Ways = append(doc.Ways, xmlWay{ID: wayID, Visible: true, Version: 1, Nds: ndsOf(r.nodeIDs)})
			}
			relation.Members = append(relation.Members, xmlMember{Type: "way", Ref: wayID, Role: r.role})
		}
		doc.Relations = append(doc.Relations, relation)
	}

	doc.Nodes = pool.nodes()

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(doc)
}

func regionTags(region *domain.Region) []xmlTag {
	tags := []xmlTag{{K: tagName, V: region.Name}}
	if region.Disabled {
		tags = append(tags, xmlTag{K: tagDisabled, V: valYes})
	}
	return tags
}

func ndsOf(ids []int64) []xmlNd {
	nds := make([]xmlNd, len(ids))
	for i, id := range ids {
		nds[i] = xmlNd{Ref: id}
	}
	return nds
}

// ringKey identifies a ring by its unordered, direction-independent set of
// node ids, so the same physical ring referenced by two borders is only
// emitted as a way once. Mirrors osm_xml.py's _ring_hash.
func ringKey(ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return fmt.Sprint(sorted)
}

// nodePool deduplicates coordinates into sequential ids starting at 1,
// preserving first-seen order for the eventual <node> list.
type nodePool struct {
	ids    map[orb.Point]int64
	points []orb.Point
}

func (p *nodePool) idFor(pt orb.Point) int64 {
	if id, ok := p.ids[pt]; ok {
		return id
	}
	id := int64(len(p.points) + 1)
	p.ids[pt] = id
	p.points = append(p.points, pt)
	return id
}

func (p *nodePool) nodes() []xmlNode {
	out := make([]xmlNode, len(p.points))
	for i, pt := range p.points {
		out[i] = xmlNode{ID: int64(i + 1), Visible: true, Version: 1, Lat: pt[1], Lon: pt[0]}
	}
	return out
}

// ringsOf flattens a Polygon or MultiPolygon's rings into outer/inner
// sequences, allocating node ids from pool as it goes. The outer role
// resets for every polygon of a MultiPolygon, matching
// osm_xml.py:_parse_polygon's per-polygon role reset.
func ringsOf(pool *nodePool, geom orb.Geometry) ([]ring, error) {
	var polygons []orb.Polygon
	switch g := geom.(type) {
	case orb.Polygon:
		polygons = []orb.Polygon{g}
	case orb.MultiPolygon:
		polygons = g
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", geom)
	}

	var rings []ring
	for _, polygon := range polygons {
		for i, r := range polygon {
			role := "outer"
			if i > 0 {
				role = "inner"
			}
			ids := make([]int64, len(r))
			for j, pt := range r {
				ids[j] = pool.idFor(pt)
			}
			rings = append(rings, ring{role: role, nodeIDs: ids})
		}
	}
	return rings, nil
}

func absInt64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

package osmxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/mapborders/partitioner/internal/domain"
	pkgerrors "github.com/mapborders/partitioner/internal/pkg/errors"
)

const actionDelete = "delete"
const actionModify = "modify"

// ParsedRegion is one region reconstructed from an OSM-XML document. Modified
// reports whether the uploaded document marked this entity, or any node or
// way it is built from, as edited — distinct from domain.Region.Modified,
// which is the Border store's own last-write timestamp.
type ParsedRegion struct {
	Region   domain.Region
	Modified bool
}

type parsedNode struct {
	lat, lon float64
	modified bool
}

type parsedWay struct {
	name     *string
	disabled bool
	modified bool
	bbox     domain.BBox
	nodeIDs  []int64
	used     bool
}

// Decode reads an OSM-XML 0.6 document and reconstructs the regions it
// describes: one per unused named way, and one per multipolygon relation
// with its outer/inner ways joined into closed rings. Mirrors
// osm_xml.py:borders_from_xml, returning on the first structural error
// instead of a human-readable string.
func Decode(r io.Reader) ([]ParsedRegion, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrMalformedXML, err)
	}

	nodes, err := decodeNodes(doc.Nodes)
	if err != nil {
		return nil, err
	}
	ways, err := decodeWays(doc.Ways, nodes)
	if err != nil {
		return nil, err
	}

	var regions []ParsedRegion
	for _, rel := range doc.Relations {
		if rel.Action == actionDelete {
			continue
		}
		parsed, err := decodeRelation(rel, ways, nodes)
		if err != nil {
			return nil, err
		}
		regions = append(regions, parsed)
	}

	for idStr, way := range ways {
		if way.used {
			continue
		}
		if way.name == nil {
			return nil, fmt.Errorf("%w: unused way %s carries no name", pkgerrors.ErrMalformedXML, idStr)
		}
		if len(way.nodeIDs) < 2 || way.nodeIDs[0] != way.nodeIDs[len(way.nodeIDs)-1] {
			return nil, fmt.Errorf("%w: unused way %s is not a closed ring", pkgerrors.ErrMalformedXML, idStr)
		}
		if len(way.nodeIDs) < 4 { // closed ring: first id repeats, so 3 distinct nodes need 4 entries
			return nil, pkgerrors.ErrDegenerateRing
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: way id %q: %v", pkgerrors.ErrMalformedXML, idStr, err)
		}
		geom, err := polygonFromRing(nodes, way.nodeIDs, nil)
		if err != nil {
			return nil, err
		}
		wkbBytes, err := wkb.Marshal(geom)
		if err != nil {
			return nil, err
		}
		regions = append(regions, ParsedRegion{
			Region: domain.Region{
				ID:       id,
				Name:     *way.name,
				Geom:     wkbBytes,
				Disabled: way.disabled,
			},
			Modified: way.modified,
		})
	}

	return regions, nil
}

func decodeNodes(xmlNodes []xmlNode) (map[int64]parsedNode, error) {
	nodes := make(map[int64]parsedNode, len(xmlNodes))
	for _, n := range xmlNodes {
		if n.Action == actionDelete {
			continue
		}
		nodes[n.ID] = parsedNode{
			lat:      n.Lat,
			lon:      n.Lon,
			modified: n.ID < 0 || n.Action == actionModify,
		}
	}
	return nodes, nil
}

func decodeWays(xmlWays []xmlWay, nodes map[int64]parsedNode) (map[string]*parsedWay, error) {
	ways := make(map[string]*parsedWay, len(xmlWays))
	for _, w := range xmlWays {
		if w.Action == actionDelete {
			continue
		}
		nodeIDs := make([]int64, 0, len(w.Nds))
		bbox := domain.BBox{West: 1e4, South: 1e4, East: -1e4, North: -1e4}
		modified := w.ID < 0 || w.Action == actionModify
		for _, nd := range w.Nds {
			n, ok := nodes[nd.Ref]
			if !ok {
				return nil, fmt.Errorf("%w: node %d referenced by way %d", pkgerrors.ErrMissingReference, nd.Ref, w.ID)
			}
			nodeIDs = append(nodeIDs, nd.Ref)
			if n.modified {
				modified = true
			}
			extendBBox(&bbox, n.lon, n.lat)
		}
		if len(nodeIDs) < 2 {
			return nil, pkgerrors.ErrDegenerateRing
		}

		var name *string
		disabled := false
		for _, t := range w.Tags {
			switch t.K {
			case tagName:
				v := t.V
				name = &v
			case tagDisabled:
				disabled = t.V == valYes
			}
		}
		ways[strconv.FormatInt(w.ID, 10)] = &parsedWay{
			name: name, disabled: disabled, modified: modified,
			bbox: bbox, nodeIDs: nodeIDs,
		}
	}
	return ways, nil
}

func extendBBox(bbox *domain.BBox, lon, lat float64) {
	bbox.West = min(bbox.West, lon)
	bbox.South = min(bbox.South, lat)
	bbox.East = max(bbox.East, lon)
	bbox.North = max(bbox.North, lat)
}

func extendBBoxWith(bbox *domain.BBox, other domain.BBox) {
	bbox.West = min(bbox.West, other.West)
	bbox.South = min(bbox.South, other.South)
	bbox.East = max(bbox.East, other.East)
	bbox.North = max(bbox.North, other.North)
}

func bboxContains(outer, inner domain.BBox) bool {
	return outer.West <= inner.West && outer.South <= inner.South &&
		outer.East >= inner.East && outer.North >= inner.North
}

// joinWay is a working copy of a relation member's way, mutated in place
// as fragmented ways are fused into closed rings.
type joinWay struct {
	nodeIDs  []int64
	bbox     domain.BBox
	modified bool
}

func decodeRelation(rel xmlRelation, ways map[string]*parsedWay, nodes map[int64]parsedNode) (ParsedRegion, error) {
	modified := rel.ID < 0 || rel.Action == actionModify
	var name *string
	disabled, multi := false, false
	for _, t := range rel.Tags {
		switch {
		case t.K == tagName:
			v := t.V
			name = &v
		case t.K == tagDisabled && t.V == valYes:
			disabled = true
		case t.K == tagType && t.V == valMultipolygon:
			multi = true
		}
	}
	if !multi {
		return ParsedRegion{}, fmt.Errorf("%w: relation %d is not a multipolygon", pkgerrors.ErrMalformedXML, rel.ID)
	}

	var outer, inner []*joinWay
	for _, m := range rel.Members {
		idStr := strconv.FormatInt(m.Ref, 10)
		w, ok := ways[idStr]
		if !ok {
			return ParsedRegion{}, fmt.Errorf("%w: way %d referenced by relation %d", pkgerrors.ErrMissingReference, m.Ref, rel.ID)
		}
		w.used = true
		if w.modified {
			modified = true
		}
		jw := &joinWay{nodeIDs: append([]int64(nil), w.nodeIDs...), bbox: w.bbox, modified: w.modified}
		switch m.Role {
		case "outer":
			outer = append(outer, jw)
		case "inner":
			inner = append(inner, jw)
		default:
			return ParsedRegion{}, fmt.Errorf("%w: unknown member role %q in relation %d", pkgerrors.ErrMalformedXML, m.Role, rel.ID)
		}
	}
	if len(outer) == 0 {
		return ParsedRegion{}, fmt.Errorf("%w: relation %d has no outer ways", pkgerrors.ErrMalformedXML, rel.ID)
	}

	var err error
	outer, err = joinIntoRings(outer)
	if err != nil {
		return ParsedRegion{}, fmt.Errorf("relation %d: %w", rel.ID, err)
	}
	inner, err = joinIntoRings(inner)
	if err != nil {
		return ParsedRegion{}, fmt.Errorf("relation %d: %w", rel.ID, err)
	}
	for _, jw := range append(append([]*joinWay(nil), outer...), inner...) {
		if jw.modified {
			modified = true
		}
		if len(jw.nodeIDs) < 4 {
			return ParsedRegion{}, pkgerrors.ErrDegenerateRing
		}
	}

	var polygons []orb.Polygon
	for _, o := range outer {
		var holes [][]int64
		for i := len(inner) - 1; i >= 0; i-- {
			if bboxContains(o.bbox, inner[i].bbox) {
				holes = append(holes, inner[i].nodeIDs)
				inner = append(inner[:i], inner[i+1:]...)
			}
		}
		polygon, err := polygonFromRing(nodes, o.nodeIDs, holes)
		if err != nil {
			return ParsedRegion{}, err
		}
		polygons = append(polygons, polygon)
	}

	var geom orb.Geometry
	if len(polygons) == 1 {
		geom = polygons[0]
	} else {
		geom = orb.MultiPolygon(polygons)
	}
	wkbBytes, err := wkb.Marshal(geom)
	if err != nil {
		return ParsedRegion{}, err
	}

	regionName := ""
	if name != nil {
		regionName = *name
	}
	return ParsedRegion{
		Region: domain.Region{
			ID:       rel.ID,
			Name:     regionName,
			Geom:     wkbBytes,
			Disabled: disabled,
		},
		Modified: modified,
	}, nil
}

// joinIntoRings repeatedly fuses ways sharing an endpoint until every
// entry is a closed ring, failing with UnconnectedWay if a dead end is
// reached. Mirrors osm_xml.py:borders_from_xml's ring-reconstruction loop.
func joinIntoRings(ways []*joinWay) ([]*joinWay, error) {
	i := 0
	for i < len(ways) {
		way := ways[i]
		for len(way.nodeIDs) == 0 || way.nodeIDs[0] != way.nodeIDs[len(way.nodeIDs)-1] {
			productive := false
			j := i + 1
			for (len(way.nodeIDs) == 0 || way.nodeIDs[0] != way.nodeIDs[len(way.nodeIDs)-1]) && j < len(ways) {
				if fused := appendWay(way.nodeIDs, ways[j].nodeIDs); fused != nil {
					way.nodeIDs = fused
					if ways[j].modified {
						way.modified = true
					}
					extendBBoxWith(&way.bbox, ways[j].bbox)
					ways = append(ways[:j], ways[j+1:]...)
					productive = true
				} else {
					j++
				}
			}
			if !productive {
				return nil, pkgerrors.ErrUnconnectedWay
			}
		}
		i++
	}
	return ways, nil
}

// appendWay fuses two node-id sequences sharing an endpoint into one,
// orienting the second to match; nil if neither end connects or either
// sequence is already a closed ring. Mirrors osm_xml.py:_append_way.
func appendWay(way, other []int64) []int64 {
	another := append([]int64(nil), other...)
	closed := func(s []int64) bool { return len(s) > 0 && s[0] == s[len(s)-1] }
	if closed(way) || closed(another) {
		return nil
	}
	if way[0] == another[0] || way[len(way)-1] == another[len(another)-1] {
		reverse(another)
	}
	switch {
	case way[len(way)-1] == another[0]:
		result := append([]int64(nil), way...)
		return append(result, another[1:]...)
	case way[0] == another[len(another)-1]:
		result := append([]int64(nil), another...)
		return append(result, way[1:]...)
	default:
		return nil
	}
}

func reverse(s []int64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// polygonFromRing builds an orb.Polygon from an outer ring's node ids and
// zero or more hole rings', resolving ids against nodes.
func polygonFromRing(nodes map[int64]parsedNode, outer []int64, holes [][]int64) (orb.Polygon, error) {
	polygon := orb.Polygon{make(orb.Ring, 0, len(outer))}
	for _, id := range outer {
		n, ok := nodes[id]
		if !ok {
			return nil, fmt.Errorf("%w: node %d", pkgerrors.ErrMissingReference, id)
		}
		polygon[0] = append(polygon[0], orb.Point{n.lon, n.lat})
	}
	for _, hole := range holes {
		ring := make(orb.Ring, 0, len(hole))
		for _, id := range hole {
			n, ok := nodes[id]
			if !ok {
				return nil, fmt.Errorf("%w: node %d", pkgerrors.ErrMissingReference, id)
			}
			ring = append(ring, orb.Point{n.lon, n.lat})
		}
		polygon = append(polygon, ring)
	}
	return polygon, nil
}

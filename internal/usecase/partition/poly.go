package partition

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/mapborders/partitioner/internal/domain"
)

// WritePoly renders clusters in the Osmosis .poly polygon-filter format:
// a header line, then for each polygon of each cluster one outer ring and
// zero or more inner rings (negative id, "!" prefix), each closed with END,
// and a final END
// closing the file. Pure formatter over already-computed geometry: no I/O
// beyond writing to w, no knowledge of where the file ends up.
func WritePoly(w io.Writer, name string, clusters []domain.SplittingCluster) error {
	if _, err := fmt.Fprintf(w, "%s\n", name); err != nil {
		return err
	}
	for _, c := range clusters {
		geom, err := wkb.Unmarshal(c.Geom)
		if err != nil {
			return fmt.Errorf("unmarshal cluster %d geometry: %w", c.RepresentativeID, err)
		}
		prefix := fmt.Sprintf("%s_%d", name, absInt64(c.RepresentativeID))
		if err := writePolygons(w, prefix, polygonsOf(geom)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "END\n")
	return err
}

// polygonsOf normalizes a Polygon or MultiPolygon into a list of polygons,
// each a list of rings with the outer ring first.
func polygonsOf(geom orb.Geometry) []orb.Polygon {
	switch g := geom.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return g
	default:
		return nil
	}
}

func writePolygons(w io.Writer, namePrefix string, polygons []orb.Polygon) error {
	counter := 1
	for _, polygon := range polygons {
		for ringIdx, ring := range polygon {
			outer := ringIdx == 0
			mark := ""
			name := counter
			if !outer {
				mark = "!"
				name = -counter
			}
			if _, err := fmt.Fprintf(w, "%s%s_%d\n", mark, namePrefix, name); err != nil {
				return err
			}
			counter++
			for _, pt := range ring {
				if _, err := fmt.Fprintf(w, "\t%E\t%E\n", pt[0], pt[1]); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprint(w, "END\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

func absInt64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

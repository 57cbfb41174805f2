package domain

import "time"

// Region is the central entity of the Border store. Positive ids are
// borrowed from the OSM source relation id of an administrative area;
// negative ids are locally allocated for synthesized or split regions.
type Region struct {
	ID          int64      `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Geom        []byte     `json:"-" db:"geom"`
	GeomGeoJSON string     `json:"geom,omitempty" db:"-"`
	ParentID    *int64     `json:"parent_id,omitempty" db:"parent_id"`
	Disabled    bool       `json:"disabled" db:"disabled"`
	Modified    time.Time  `json:"modified" db:"modified"`
	CountK      *int64     `json:"count_k,omitempty" db:"count_k"`
	MwmSizeEst  *float64   `json:"mwm_size_est,omitempty" db:"mwm_size_est"`
	Comment     *string    `json:"cmnt,omitempty" db:"cmnt"`
}

// IsStale reports whether the background worker should recompute count_k.
func (r *Region) IsStale() bool {
	return r.CountK != nil && *r.CountK < 0
}

// NeverCounted reports whether count_k has never been computed.
func (r *Region) NeverCounted() bool {
	return r.CountK == nil
}

// RegionMeta is the subset of Region fields mutable via update_meta.
type RegionMeta struct {
	Name     *string `validate:"omitempty,min=1"`
	Disabled *bool
	Comment  *string
	ParentID *int64
}

// RegionMutation validates the fields accepted when creating or
// re-parenting a region through the editor surface.
type RegionMutation struct {
	Name      string  `validate:"required,min=1"`
	CenterLat float64 `validate:"latitude"`
	CenterLon float64 `validate:"longitude"`
	ParentID  *int64  `validate:"omitempty"`
}

// BBox is a geographic bounding box, west/south/east/north in degrees.
type BBox struct {
	West, South, East, North float64
}

// SimplifyLevel maps to the degree tolerances used by in_bbox: {0, 0.01, 0.1}.
type SimplifyLevel int

const (
	SimplifyNone SimplifyLevel = iota
	SimplifyLow
	SimplifyHigh
)

func (l SimplifyLevel) Tolerance() float64 {
	switch l {
	case SimplifyLow:
		return 0.01
	case SimplifyHigh:
		return 0.1
	default:
		return 0
	}
}

// BackupSnapshot is a full timestamped copy of the Region table.
type BackupSnapshot struct {
	Label     string    `json:"label" db:"backup"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	RowCount  int       `json:"row_count" db:"-"`
}

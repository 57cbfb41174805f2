// Package osmxml implements the OSM-XML 0.6 codec used to hand a region or
// a batch of regions to an external editor (JOSM) and read its edits back.
// Grounded line-for-line on original_source/web/app/osm_xml.py: coordinate
// deduplication into a node pool, the single-way-vs-multipolygon emission
// choice, and the fragmented-way ring-joining algorithm on decode. Uses
// encoding/xml struct tags the way MartinMeyer1-bike-map's GPX reader does,
// rather than the original's hand-built string concatenation, and
// paulmach/orb geometry types instead of WKT string assembly.
package osmxml

import "encoding/xml"

type document struct {
	XMLName   xml.Name   `xml:"osm"`
	Version   string     `xml:"version,attr"`
	Upload    string     `xml:"upload,attr"`
	Nodes     []xmlNode  `xml:"node"`
	Ways      []xmlWay   `xml:"way"`
	Relations []xmlRelation `xml:"relation"`
}

type xmlNode struct {
	ID      int64   `xml:"id,attr"`
	Visible bool    `xml:"visible,attr"`
	Version int     `xml:"version,attr"`
	Lat     float64 `xml:"lat,attr"`
	Lon     float64 `xml:"lon,attr"`
	Action  string  `xml:"action,attr,omitempty"`
}

type xmlTag struct {
	K string `xml:"k,attr"`
	V string `xml:"v,attr"`
}

type xmlNd struct {
	Ref int64 `xml:"ref,attr"`
}

type xmlWay struct {
	ID      int64     `xml:"id,attr"`
	Visible bool      `xml:"visible,attr"`
	Version int       `xml:"version,attr"`
	Action  string    `xml:"action,attr,omitempty"`
	Tags    []xmlTag  `xml:"tag"`
	Nds     []xmlNd   `xml:"nd"`
}

type xmlMember struct {
	Type string `xml:"type,attr"`
	Ref  int64  `xml:"ref,attr"`
	Role string `xml:"role,attr"`
}

type xmlRelation struct {
	ID      int64       `xml:"id,attr"`
	Visible bool        `xml:"visible,attr"`
	Version int         `xml:"version,attr"`
	Action  string      `xml:"action,attr,omitempty"`
	Tags    []xmlTag    `xml:"tag"`
	Members []xmlMember `xml:"member"`
}

const (
	tagName     = "name"
	tagDisabled = "disabled"
	tagType     = "type"
	valMultipolygon = "multipolygon"
	valYes          = "yes"
)

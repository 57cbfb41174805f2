package osmxml_test

import (
	"bytes"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/osmxml"
	pkgerrors "github.com/mapborders/partitioner/internal/pkg/errors"
)

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}}
}

func mustWKB(t *testing.T, geom orb.Geometry) []byte {
	t.Helper()
	b, err := wkb.Marshal(geom)
	require.NoError(t, err)
	return b
}

func TestEncodeSingleWayRoundTrip(t *testing.T) {
	region := &domain.Region{ID: 42, Name: "Testland", Geom: mustWKB(t, square(0, 0, 1, 1))}

	var buf bytes.Buffer
	require.NoError(t, osmxml.Encode(&buf, []*domain.Region{region}, false))

	parsed, err := osmxml.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, int64(42), parsed[0].Region.ID)
	assert.Equal(t, "Testland", parsed[0].Region.Name)
	assert.False(t, parsed[0].Modified)
}

func TestEncodeMultiPolygonWithHole(t *testing.T) {
	outer := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	hole := orb.Ring{{2, 2}, {2, 4}, {4, 4}, {4, 2}, {2, 2}}
	geom := orb.Polygon{outer, hole}
	region := &domain.Region{ID: 7, Name: "WithHole", Geom: mustWKB(t, geom)}

	var buf bytes.Buffer
	require.NoError(t, osmxml.Encode(&buf, []*domain.Region{region}, true))

	parsed, err := osmxml.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, int64(7), parsed[0].Region.ID)

	roundTripped, err := wkb.Unmarshal(parsed[0].Region.Geom)
	require.NoError(t, err)
	polygon, ok := roundTripped.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, polygon, 2)
}

func TestEncodeDedupesSharedRing(t *testing.T) {
	shared := square(0, 0, 1, 1)
	a := &domain.Region{ID: 1, Name: "A", Geom: mustWKB(t, shared)}
	b := &domain.Region{ID: 2, Name: "B", Geom: mustWKB(t, shared)}

	var buf bytes.Buffer
	require.NoError(t, osmxml.Encode(&buf, []*domain.Region{a, b}, true))
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("<way ")), "shared ring emitted as a single way")

	parsed, err := osmxml.Decode(&buf)
	require.NoError(t, err)
	assert.Len(t, parsed, 2)
}

func TestEncodeNegativeIDAbsoluteValue(t *testing.T) {
	region := &domain.Region{ID: -5, Name: "Synthesized", Geom: mustWKB(t, square(0, 0, 1, 1))}

	var buf bytes.Buffer
	require.NoError(t, osmxml.Encode(&buf, []*domain.Region{region}, false))

	parsed, err := osmxml.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, int64(5), parsed[0].Region.ID)
}

func TestDecodeRejectsMalformedXML(t *testing.T) {
	_, err := osmxml.Decode(bytes.NewBufferString("not xml at all <<<"))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrMalformedXML)
}

func TestDecodeRejectsMissingNodeReference(t *testing.T) {
	doc := `<?xml version="1.0"?>
<osm version="0.6" upload="false">
  <way id="1" visible="true" version="1">
    <nd ref="1"/>
    <nd ref="2"/>
    <tag k="name" v="Broken"/>
  </way>
</osm>`
	_, err := osmxml.Decode(bytes.NewBufferString(doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrMissingReference)
}

func TestDecodeRejectsUnconnectedWay(t *testing.T) {
	doc := `<?xml version="1.0"?>
<osm version="0.6" upload="false">
  <node id="1" visible="true" version="1" lat="0" lon="0"/>
  <node id="2" visible="true" version="1" lat="0" lon="1"/>
  <node id="3" visible="true" version="1" lat="1" lon="1"/>
  <node id="4" visible="true" version="1" lat="1" lon="0"/>
  <way id="10" visible="true" version="1">
    <nd ref="1"/>
    <nd ref="2"/>
  </way>
  <way id="11" visible="true" version="1">
    <nd ref="3"/>
    <nd ref="4"/>
  </way>
  <relation id="100" visible="true" version="1">
    <member type="way" ref="10" role="outer"/>
    <member type="way" ref="11" role="outer"/>
    <tag k="type" v="multipolygon"/>
    <tag k="name" v="Gappy"/>
  </relation>
</osm>`
	_, err := osmxml.Decode(bytes.NewBufferString(doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrUnconnectedWay)
}

func TestDecodeRejectsNonMultipolygonRelation(t *testing.T) {
	doc := `<?xml version="1.0"?>
<osm version="0.6" upload="false">
  <node id="1" visible="true" version="1" lat="0" lon="0"/>
  <node id="2" visible="true" version="1" lat="0" lon="1"/>
  <way id="10" visible="true" version="1">
    <nd ref="1"/>
    <nd ref="2"/>
  </way>
  <relation id="100" visible="true" version="1">
    <member type="way" ref="10" role="outer"/>
    <tag k="name" v="NotAMultipolygon"/>
  </relation>
</osm>`
	_, err := osmxml.Decode(bytes.NewBufferString(doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrMalformedXML)
}

func TestDecodePropagatesModifiedFromNegativeNodeID(t *testing.T) {
	doc := `<?xml version="1.0"?>
<osm version="0.6" upload="false">
  <node id="-1" visible="true" version="1" lat="0" lon="0"/>
  <node id="2" visible="true" version="1" lat="0" lon="1"/>
  <node id="3" visible="true" version="1" lat="1" lon="1"/>
  <node id="4" visible="true" version="1" lat="1" lon="0"/>
  <way id="10" visible="true" version="1">
    <nd ref="-1"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <nd ref="4"/>
    <nd ref="-1"/>
    <tag k="name" v="Solid"/>
  </way>
</osm>`
	parsed, err := osmxml.Decode(bytes.NewBufferString(doc))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.True(t, parsed[0].Modified)
}

package errors

import "net/http"

// Error kinds from the error handling design: neutral names, one
// package-level *AppError per kind.
var (
	ErrNotFound = New(
		"NOT_FOUND",
		"region id absent",
		http.StatusNotFound,
	)

	ErrConflict = New(
		"CONFLICT",
		"id collision on create",
		http.StatusConflict,
	)

	ErrHasChildren = New(
		"HAS_CHILDREN",
		"delete refused: region has children",
		http.StatusConflict,
	)

	ErrNotSinglePolygon = New(
		"NOT_SINGLE_POLYGON",
		"operation requires a region with exactly one outer ring",
		http.StatusBadRequest,
	)

	ErrNotMultiPolygon = New(
		"NOT_MULTI_POLYGON",
		"operation requires a region with more than one outer ring",
		http.StatusBadRequest,
	)

	ErrNoSplit = New(
		"NO_SPLIT",
		"split produced one or fewer pieces",
		http.StatusUnprocessableEntity,
	)

	ErrUnestimable = New(
		"UNESTIMABLE",
		"feature vector outside predictor bounds",
		http.StatusUnprocessableEntity,
	)

	ErrForbidden = New(
		"FORBIDDEN",
		"mutation attempted while store is read-only",
		http.StatusForbidden,
	)

	ErrMalformedXML = New(
		"MALFORMED_XML",
		"OSM-XML document could not be parsed",
		http.StatusBadRequest,
	)

	ErrUnconnectedWay = New(
		"UNCONNECTED_WAY",
		"multipolygon ring could not be closed from its member ways",
		http.StatusBadRequest,
	)

	ErrDegenerateRing = New(
		"DEGENERATE_RING",
		"ring assembled with fewer than 3 nodes",
		http.StatusBadRequest,
	)

	ErrMissingReference = New(
		"MISSING_REFERENCE",
		"way or node referenced but not present in document",
		http.StatusBadRequest,
	)

	ErrRetry = New(
		"RETRY",
		"snapshot requested twice within the same minute",
		http.StatusTooManyRequests,
	)

	ErrSpatialStoreError = New(
		"SPATIAL_STORE_ERROR",
		"spatial store operation failed",
		http.StatusInternalServerError,
	)
)

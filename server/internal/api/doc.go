// Package api implements the HTTP surface of cardiowatch-server on a chi
// router.
//
// New(deps) returns a handler that serves:
//
//	GET  /api/v1/health                 status, patient/record/alert counts
//	GET  /api/v1/stats                  cardiowatch counters from the Prometheus registry
//	GET  /api/v1/alerts?limit=&patient= dispatched events, newest first
//	GET  /api/v1/patients               patient ids
//	GET  /api/v1/patients/{id}          latest graded vitals
//	GET  /api/v1/patients/{id}/records  ?start=&end=&type=, oldest first
//	POST /api/v1/patients/{id}/records  one record object or an array
//	GET  /api/v1/patients/{id}/alerts   on-demand evaluation, not dispatched
//	GET  /metrics                       Prometheus exposition
//	GET  /ws/alerts                     alert stream, when Deps.Stream is set
//
// Errors wrapping types.ErrInvalidInput map to 400 and
// types.ErrStorageUnavailable to 503. JSON types are defined in types.go.
package api

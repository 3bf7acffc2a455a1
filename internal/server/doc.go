// Package server implements the HTTP server using Echo framework.
//
// Routes: site metadata + site event stream (/api/data), topic voting
// (/api/topics/vote), session lifecycle and the per-session event stream
// (/api/sessions/:id). Handlers split by domain: handlers_data.go,
// handlers_vote.go, handlers_session.go, handlers_health.go.
package server

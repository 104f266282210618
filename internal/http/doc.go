// Package http exposes the rehearsal scheduler over JSON.
//
// Callers are authenticated upstream and identify the acting user with the
// X-Acting-User header. The router serves:
//   - GET /api/health: dependency checks, 503 when one fails.
//   - POST /users, POST /users/authenticate: registration and credential
//     checks; no acting user needed. GET /users/{id}, PUT /users/{id}/password.
//   - /users/{id}/availability-rules, /users/{id}/unavailabilities and
//     GET /users/{id}/free-intervals?start=&end=: the user's own calendar.
//   - POST /bands, GET /bands/{id}, GET|POST /bands/{id}/members and
//     PUT /bands/{id}/invitation: bands and invitations.
//   - POST /bands/{id}/slot-suggestions and /bands/{id}/slot-validations:
//     quorum based slot search and checks.
//   - GET|POST /bands/{id}/rehearsals, GET /rehearsals/{id},
//     POST /rehearsals/{id}/cancel|complete, PUT /rehearsals/{id}/response,
//     PUT /rehearsals/{id}/attendance/{userID}, GET /rehearsals/{id}/attendees
//     and GET /rehearsals/{id}/attendance.xlsx: the rehearsal lifecycle.
//
// Validation failures answer 422 with per-field messages, permission
// failures 403, missing resources 404, and state conflicts 409.
package http

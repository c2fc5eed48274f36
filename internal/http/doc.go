// Package http provides HTTP handlers and middleware for the tracker API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}.
//     Response: {"token","user_id","role","expires_at"} with the token also
//     surfaced via the `X-Session-Token` header and a `session_token` cookie.
//   - POST /sessions/refresh: rotates the current session token.
//   - DELETE /sessions/current: revokes the caller's session and clears the cookie.
//   - DELETE /sessions/{token}: administrator revocation of an arbitrary session.
//   - GET /users, POST /users, GET/PUT/DELETE /users/{id}: administrator
//     controlled user management exchanging the `userRequest`/`userResponse`
//     payloads defined in user_handler.go.
//   - GET /permissions, POST /permissions, DELETE /permissions/{id},
//     POST /permissions/{id}/restore: schedule-visibility grant management.
//     POST applies a batch grant and responds with the created/restored/
//     already_active/failed partition defined in permission_handler.go.
//   - GET /calls, POST /calls, GET/PUT/DELETE /calls/{id}: call management.
//     Listing returns every call the principal may see, soonest first.
//   - POST /calls/{id}/start|complete|fail|cancel|reschedule: lifecycle
//     transitions; reschedule takes {"scheduled_at","notes"}.
//   - POST /calls/{id}/snooze: requests a one-shot reminder after
//     {"snooze_minutes"} minutes.
//   - GET /notifications, DELETE /notifications/{id}: the principal's pending
//     reminder notifications.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http

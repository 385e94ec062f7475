// Package http exposes the booking engine over JSON.
//
// The router serves the following endpoints:
//   - POST /reservations: books a single interval. Body: reservationRequest.
//     Responds 201 with {"reservation"} or 422 with {"message","violations"}.
//   - POST /reservations/recurring: books a daily or weekly series atomically.
//     Responds 201 with {"reservations"}; violations carry the occurrence index.
//   - GET /reservations?room_id=&user_id=&series_id=&active=: lists reservations
//     in start order. GET /reservations/{id} returns one reservation.
//   - POST /reservations/{id}/cancel: cancels a reservation owned by the caller.
//     Responds 409 once cancelled or inside the cancellation cutoff.
//   - GET /rooms, POST /rooms, GET /rooms/{id}: the room catalog. Creation is
//     restricted to administrators.
//   - GET /rooms/{id}/availability?date=YYYY-MM-DD: free business-hour slots and
//     the active reservations of the room on that date.
//   - GET /users, POST /users, GET /users/{id}: the user directory.
//
// Callers identify themselves with the X-User-ID header. Requests without it
// run as an anonymous principal; unknown ids are rejected with 401.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http

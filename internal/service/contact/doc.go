// Package contact implements contact state lookups and transitions for the
// contact-resolution step (spec §4.2 step 3). The webhook ingestor does not
// call it: it resolves contacts through its own transactional Tx.
//
// The scheduler's own claim algorithm (§4.1) is not implemented here: it is
// a single atomic multi-table operation and lives in internal/scheduler
// against its own narrow repository interface, the same way the teacher's
// campaign scheduler keeps its claim query next to its loop rather than
// behind a general-purpose CRUD service.
package contact

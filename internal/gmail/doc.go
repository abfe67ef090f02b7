// Package gmail wraps the Gmail API for mailbox access and change tracking.
//
// Besides thread and message operations, the package implements incremental
// change enumeration on top of the Gmail history API: given a history cursor
// from a previous sync, it walks forward collecting newly added message IDs
// and the new frontier cursor. Enumeration is bounded to a fixed number of
// pages per call; a truncated walk reports the cursor it reached so the next
// delivery resumes from there. A cursor that Gmail no longer recognizes is a
// distinct error, since recovery (re-seeding the checkpoint) differs from
// ordinary upstream failures.
//
// Mailbox watch registration (Users.Watch) is also handled here so push
// notifications can be initiated and renewed.
package gmail

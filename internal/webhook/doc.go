// Package webhook processes Pub/Sub push deliveries for watched mailboxes.
//
// A delivery moves through a fixed sequence of states: received, verified
// (push identity token), decoded (envelope), identified (tenant headers),
// enumerated (mailbox history from the stored checkpoint), checkpointed
// (cursor advanced before responding) and responded. Any failure short
// circuits to a classified error: authentication failures map to 401,
// structurally invalid requests to 400, and everything transient to a
// non-4xx status so the broker retries.
//
// The checkpoint is advanced eagerly to the delivery's reported cursor
// before the response is written. A duplicate or redundant delivery is
// cheaper to under-process than to reprocess; losing trailing events to a
// rare race is accepted.
package webhook

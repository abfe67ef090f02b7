// Package watch_tools registers the mailbox watch tools. Starting a watch
// registers the Pub/Sub topic with Gmail and seeds the history checkpoint
// for the tenant server, which arms the push webhook for that tenant.
package watch_tools

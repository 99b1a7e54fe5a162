// Package events carries worker notifications and connection changes to the
// rest of the host.
//
// Worker notification methods are translated into the host namespace by
// replacing every '.' with ':' (progress.update becomes progress:update).
// The Hub keeps a bounded ring of recent events for long-poll readers, fans
// them out to live subscribers without ever blocking the publisher, and
// forwards each event to persistence sinks such as the SQLite Archive.
package events

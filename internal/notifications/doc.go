// Package notifications delivers daemon alerts via ntfy.
//
// The ntfy implementation posts to the topic configured in config.toml and
// degrades to a no-op when no topic is set. Worker disconnects and failed
// health checks can be silenced with notifications.disconnect = false.
package notifications

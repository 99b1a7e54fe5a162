// Package deps checks that the programs the worker launch depends on are
// installed. The CLI status view and the daemon launch snapshot both use it.
package deps

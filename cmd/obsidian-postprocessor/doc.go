// Package main hosts the obsidian-postprocessor CLI entrypoint and command
// graph.
//
// The Cobra-based command tree resolves configuration, sets up structured
// logging, and hands off to internal/vaultrun for one-shot passes, the watch
// loop, record resets, and vault status. Keep this package lean: behaviour
// belongs in the internal packages and is surfaced here through commands and
// flags.
package main

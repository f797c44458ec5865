// Package migrations embeds SQL migration scripts for the game SQLite store.
package migrations

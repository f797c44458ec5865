package migrations

import "embed"

// SessionsDir is the directory inside SessionsFS holding the migrations.
const SessionsDir = "sessions"

// SessionsFS holds the session and action history schema.
//
//go:embed sessions/*.sql
var SessionsFS embed.FS

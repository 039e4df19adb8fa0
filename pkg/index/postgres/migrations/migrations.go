// Package migrations embeds the SQL migration set applied to the
// PostgreSQL Fedora↔OCFL Index schema, grounded on the teacher's
// golang-migrate + embed.FS bootstrap pattern.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

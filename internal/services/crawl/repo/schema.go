package repo

import (
	_ "embed"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// schemaStatements splits the embedded DDL into executable statements
func schemaStatements() []string {
	parts := strings.Split(schemaSQL, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Package db embeds the SQL schema so migrations ship inside the binary.
package db

import "embed"

//go:embed migrations seeds
var Files embed.FS

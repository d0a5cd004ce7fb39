// Package migrations embeds the Taskdesk schema migrations into the binary.
//
// Importing this package (usually with a blank import) registers the files
// with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/taskdesk/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}

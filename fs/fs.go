package appfs

import "embed"

// FS holds the database migrations, email templates and static assets shipped with the binaries.
//
//go:embed assets migrations templates
var FS embed.FS

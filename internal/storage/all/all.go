// Package all links every course backend into the binary.
package all

import (
	_ "eduetl/internal/storage/mssql"
	_ "eduetl/internal/storage/mysql"
	_ "eduetl/internal/storage/postgres"
	_ "eduetl/internal/storage/sqlite"
)

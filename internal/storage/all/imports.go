// Package all registers every storage backend with the factory. Binaries
// blank-import it so the backend is selectable purely by configuration.
package all

import (
	_ "faersload/internal/storage/mongo"
	_ "faersload/internal/storage/postgres"
	_ "faersload/internal/storage/sqlite"
)

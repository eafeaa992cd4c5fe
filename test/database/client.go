// Package database provides the shared test database client for store
// integration tests.
package database

import (
	"testing"

	"github.com/izgorodin/team-ops-assistant/pkg/database"
	"github.com/izgorodin/team-ops-assistant/test/util"
)

// NewTestClient creates a test database client.
// In CI (when CI_DATABASE_URL is set): connects to the external PostgreSQL
// service container. In local dev: spins up a PostgreSQL testcontainer.
// The schema and connections are cleaned up when the test ends.
func NewTestClient(t *testing.T) *database.Client {
	return database.NewClientFromDB(util.SetupTestDatabase(t))
}

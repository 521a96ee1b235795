// Package fixturedb gives integration tests a disposable database schema with
// the registered Bun models deployed and fixture files loaded.
//
// The facility is gated on FIXTUREDB_TEST_DSN. A typical test:
//
//	func TestUsers(t *testing.T) {
//		h := fixturedb.New(t, fixturedb.Options{FixturesGlob: "user*"})
//		var users []User
//		require.NoError(t, h.DB().NewSelect().Model(&users).Scan(ctx))
//	}
//
// Each run gets a schema named test_<random hex> that is dropped when the
// handle disconnects. Postgres schemas, MySQL databases and SQLite database
// files are used as the isolation unit depending on the DSN scheme.
//
// Tables without a Go model can be created by the .sql files of
// Options.SQLDir, which run after the models are deployed.
package fixturedb

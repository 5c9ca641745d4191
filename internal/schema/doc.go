// Package schema keeps one integer version per managed table and drives the
// migration of each table from its persisted version to the version its
// owning code declares.
//
// Versions are stored in the registry table schema_versions:
//
//	table_name     VARCHAR(50) PRIMARY KEY
//	schema_version MEDIUMINT   (INTEGER on PostgreSQL)
//
// At startup the bootstrap calls EnsureRegistryTable and then CheckAll with
// the code-declared descriptors and a Reporter. CheckAll never fails and
// never decides what is fatal: it reports three conditions (cannot check,
// missing row, wrong version) and leaves the decision to the caller.
//
// Migrate runs in one transaction through the persistence runner: it reads
// the persisted version, applies the plan steps in between and records the
// new version. The structural change of each step lives in the Plan, loaded
// from embedded SQL files laid out as <table>/<NNNN>_<description>.sql.
//
// Note that MySQL commits DDL implicitly, so a failed multi-step MySQL
// migration can leave earlier steps applied while the version row is
// unchanged. Steps should be written to tolerate being re-applied.
package schema

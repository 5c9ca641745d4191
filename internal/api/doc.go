// Package api provides the admin HTTP API for Gray Logic Persist.
//
// It exposes health, pool and runner statistics, the schema registry state,
// per-table migration and the audit trail. Every database access goes
// through the persistence runner; migration requests run as authorised
// units of work so a permission failure reaches the handler unchanged and
// maps to 403.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

// Package audit records and lists administrative actions in the audit_logs
// table. Every read and write is a unit of work on the persistence runner,
// so an audit entry written from inside another unit of work commits or
// rolls back together with it.
package audit

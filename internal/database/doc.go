// Package database opens the Postgres pool used to record feed events.
package database

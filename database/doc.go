// Package database manages the Bun connection used by fixture loading. It
// picks the dialect from the DSN, creates and binds test schemas, then deploys
// the registered models and runs schema SQL files before fixtures are written.
package database

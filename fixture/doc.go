// Package fixture parses fixture documents and loads them into a database.
//
// A fixture file is YAML (JSON is accepted as a subset) in one of three
// shapes, chosen by the structure of the top-level node:
//
//	# users.yaml: a list of rows for the table named by the file,
//	# singularized ("user")
//	- {id: 1, name: a}
//	- {id: 2, name: b}
//
//	# the same with an explicit table
//	table: users
//	rows:
//	  - {id: 1, name: a}
//
//	# alternating table names and rows, any number of tables
//	- user
//	- {id: 1, name: a}
//	- post
//	- {id: 1, user_id: 1}
//
// Anything else is rejected with a *ParseError. Files are loaded in lexical
// order of their names, and rows within a file in document order. Explicit
// integer primary keys are tracked per table; after all files are loaded the
// auto-increment counter of each such table is moved past the largest key.
package fixture

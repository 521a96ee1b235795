// Package repository inserts fixture rows through Bun. Tables backed by a
// registered model decode each row into the model so model hooks run; other
// tables are written from plain maps.
package repository

// Package catalog implements the local relational store spec.md calls
// the "Catalog (external)": a single SQLite file per node holding flare
// metadata rows and node profile rows, queryable by path or hash. The
// schema here is not normative (spec.md is explicit that only the
// catalog's role is fixed) — this is one reasonable shape for it.
//
// The teacher (johnjansen-torua) has no persistence layer at all; this
// package is net new, grounded directly in spec.md's Catalog row and in
// original_source/libmagma/libmagma/flare_system/sql.c's query-by-path/
// hash access pattern, built with github.com/jmoiron/sqlx over
// github.com/mattn/go-sqlite3 for struct-scanning convenience.
package catalog

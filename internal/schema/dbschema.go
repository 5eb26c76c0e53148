package schema

import (
	"database/sql"
	"fmt"
	"strings"
)

// DescribeDatabase enumerates the tables, columns, and indexes of db via
// SQLite's PRAGMA metadata statements, exactly as spec §4.13 specifies:
// internal tables prefixed "sqlite_" or "_cf_" are excluded, and every
// identifier interpolated into a PRAGMA statement is quoted-and-escaped
// first (PRAGMA does not support bound parameters for table names).
func DescribeDatabase(db *sql.DB) (*DatabaseDoc, error) {
	names, err := tableNames(db)
	if err != nil {
		return nil, err
	}

	doc := &DatabaseDoc{}
	for _, name := range names {
		cols, err := tableColumns(db, name)
		if err != nil {
			return nil, fmt.Errorf("schema: columns for %q: %w", name, err)
		}
		idx, err := tableIndexes(db, name)
		if err != nil {
			return nil, fmt.Errorf("schema: indexes for %q: %w", name, err)
		}
		doc.Tables = append(doc.Tables, TableDoc{Name: name, Columns: cols, Indexes: idx})
	}
	return doc, nil
}

func tableNames(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if strings.HasPrefix(name, "sqlite_") || strings.HasPrefix(name, "_cf_") {
			continue
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func tableColumns(db *sql.DB, table string) ([]ColumnDoc, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnDoc
	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notNull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		c := ColumnDoc{Name: name, Type: ctype, Nullable: notNull == 0, PK: pk > 0}
		if dflt.Valid {
			v := dflt.String
			c.Default = &v
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func tableIndexes(db *sql.DB, table string) ([]IndexDoc, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA index_list(%s)`, quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type listRow struct {
		seq     int
		name    string
		unique  int
		origin  string
		partial int
	}
	var list []listRow
	for rows.Next() {
		var r listRow
		if err := rows.Scan(&r.seq, &r.name, &r.unique, &r.origin, &r.partial); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]IndexDoc, 0, len(list))
	for _, r := range list {
		cols, err := indexColumns(db, r.name)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, IndexDoc{Name: r.name, Columns: cols, Unique: r.unique != 0})
	}
	return indexes, nil
}

func indexColumns(db *sql.DB, index string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA index_info(%s)`, quoteIdent(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

// quoteIdent double-quote-delimits a SQL identifier for interpolation into a
// PRAGMA statement, doubling any internal double-quotes — PRAGMA table_info
// et al. do not accept bound parameters for the table/index name.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

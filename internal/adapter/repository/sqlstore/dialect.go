package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// dialect captures the differences between the supported SQL engines.
type dialect struct {
	name       string
	driver     string
	primaryKey string
	foreignKey string
	// maxIdentifier is the identifier length limit in bytes, 0 for none.
	maxIdentifier int
	tableExists   string
	tableColumns  string
}

var (
	sqliteDialect = dialect{
		name:         "sqlite",
		driver:       "sqlite",
		primaryKey:   "INTEGER PRIMARY KEY AUTOINCREMENT",
		foreignKey:   "INTEGER",
		tableExists:  `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`,
		tableColumns: `SELECT name FROM pragma_table_info(?) ORDER BY cid`,
	}
	postgresDialect = dialect{
		name:          "postgres",
		driver:        "postgres",
		primaryKey:    "BIGSERIAL PRIMARY KEY",
		foreignKey:    "BIGINT",
		maxIdentifier: 63,
		tableExists:   `SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`,
		tableColumns:  `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? ORDER BY ordinal_position`,
	}
)

// placeholder returns the n-th (1-based) bind parameter.
func (d dialect) placeholder(n int) string {
	if d.name == postgresDialect.name {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// rebind rewrites ? parameters for the dialect. Only used on fixed queries
// that carry no quoted identifiers.
func (d dialect) rebind(query string) string {
	if d.name != postgresDialect.name {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// checkIdentifier rejects names the engine would silently truncate.
func (d dialect) checkIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("empty identifier")
	}
	if d.maxIdentifier > 0 && len(name) > d.maxIdentifier {
		return fmt.Errorf("identifier %q exceeds %d bytes on %s", name, d.maxIdentifier, d.name)
	}
	return nil
}

// quote makes name a quoted SQL identifier.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// parseDSN maps a DATABASE_URL onto a dialect and a driver data source name.
func parseDSN(url string) (dialect, string, error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return dialect{}, "", fmt.Errorf("sqlite DSN has no path")
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return sqliteDialect, "file:" + path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgresDialect, url, nil
	default:
		return dialect{}, "", fmt.Errorf("unsupported database URL %q: want sqlite:// or postgres://", url)
	}
}

package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
)

// ClickhouseExecutor is the slice of the connection the migration runner
// needs, matching the clickhouse-go driver.Conn Exec signature.
type ClickhouseExecutor interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// RunClickhouseMigrations applies the embedded ClickHouse schema files.
// The target database must already exist (it normally comes from the DSN).
func RunClickhouseMigrations(ctx context.Context, db ClickhouseExecutor) error {
	files, err := sqlFiles(clickhouseFS, "clickhouse")
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(clickhouseFS, "clickhouse/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		if err := validateNoSemicolonInStrings(string(data)); err != nil {
			return fmt.Errorf("validate migration %s: %w", file, err)
		}

		// The driver doesn't support multiquery in Exec, so statements run
		// one at a time.
		for _, stmt := range splitStatements(string(data)) {
			if err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
	}

	return nil
}

// splitStatements splits SQL content into individual statements by
// semicolon. Intentionally simple: migrations must not put semicolons
// inside string literals or block comments, and must use -- comments only.
// validateNoSemicolonInStrings enforces the literal rule.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings checks that SQL doesn't contain semicolons
// inside single-quoted strings, which would break the statement splitter.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++ // escaped quote
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon found inside string literal")
		}
	}
	return nil
}

package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// LoadFixtures loads SQL fixture files into the database
func LoadFixtures(db *sql.DB, fixturesPath string, files []string) error {
	for _, file := range files {
		path := filepath.Join(fixturesPath, file)
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read fixture %s: %w", file, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("load fixture %s: %w", file, err)
		}
		fmt.Printf("Loaded fixture: %s\n", file)
	}

	return nil
}

// GetRegionIDByName returns a region's id given its name, for fixtures that
// seed rows with known names but synthesized negative ids.
func GetRegionIDByName(db *sql.DB, table, name string) (int64, error) {
	var id int64
	err := db.QueryRowContext(context.Background(),
		fmt.Sprintf("SELECT id FROM %s WHERE name = $1", table), name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get region id by name %q: %w", name, err)
	}
	return id, nil
}

package jobs

import (
	"fmt"
	"os"
	"strings"
)

// ExcludedIDsFromFile reads posting IDs from a plain text file, one per line.
// Blank lines and lines starting with # are skipped. A missing file is not an
// error: there is simply nothing to exclude yet.
func ExcludedIDsFromFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading exclude file %q: %w", path, err)
	}

	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}

	return ids, nil
}

// AppendExcludedIDs appends the given posting IDs to the exclude file,
// skipping IDs already present.
func AppendExcludedIDs(path string, ids []string) error {
	existing, err := ExcludedIDsFromFile(path)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}

	var fresh []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, id)
	}

	if len(fresh) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening exclude file %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(fresh, "\n") + "\n"); err != nil {
		return fmt.Errorf("appending to exclude file %q: %w", path, err)
	}

	return nil
}

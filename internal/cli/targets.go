package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoTargetsInFile means the targets file had no usable identifiers.
var ErrNoTargetsInFile = errors.New("targets file lists no identifiers")

// readTargetsFile reads target identifiers from path, one per line. Blank
// lines and lines starting with '#' are ignored.
func readTargetsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open targets file: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTargetsInFile, path)
	}
	return targets, nil
}

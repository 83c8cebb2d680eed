package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const artifactSuffix = "-results.json"

// ArtifactName returns the artifact file name for a site/category run,
// e.g. "planetsportbet-football-results.json".
func ArtifactName(site string, category Category) string {
	return fmt.Sprintf("%s-%s%s", slug(site), slug(string(category)), artifactSuffix)
}

// WriteArtifact writes the summary as indented JSON into dir and returns the path.
// The file is written to a temporary name first and renamed into place.
func WriteArtifact(dir string, summary *RunSummary) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding summary: %w", err)
	}

	path := filepath.Join(dir, ArtifactName(summary.Site, summary.Category))
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("renaming %s: %w", tmp, err)
	}

	return path, nil
}

// ReadArtifact parses a summary file. Counters are recomputed from the event
// list, and the category is derived from the sport label when absent.
func ReadArtifact(path string) (*RunSummary, error) {
	// #nosec G304 -- artifact paths are operator supplied
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}

	if summary.Category == "" {
		if c, ok := CategoryFromLabel(summary.Sport); ok {
			summary.Category = c
		} else if c, ok := CategoryFromLabel(summary.TestName); ok {
			summary.Category = c
		}
	}

	for i := range summary.Events {
		if summary.Events[i].Category == "" {
			summary.Events[i].Category = summary.Category
		}
	}

	consistent := summary.TotalEvents == summary.PassedEvents+summary.FailedEvents+summary.ErrorEvents
	if len(summary.Events) > 0 || !consistent {
		summary.Recount()
	}

	return &summary, nil
}

// ListArtifacts returns every artifact file in dir, sorted by name.
func ListArtifacts(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+artifactSuffix))
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	return matches, nil
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder

	lastDash := false

	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}

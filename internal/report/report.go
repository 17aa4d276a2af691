// Package report summarizes the organized download tree: per-file entries
// with their classification buckets plus aggregate counts, renderable as a
// table or saved as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// stagingSuffix marks in-progress files that never count as downloads.
const stagingSuffix = ".part"

// FileEntry describes one organized file on disk.
type FileEntry struct {
	Path      string `json:"path"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"sizeBytes"`
	Extension string `json:"extension"`
	Company   string `json:"company"`
	Year      string `json:"year"`
	Period    string `json:"period"`
}

// Summary aggregates the whole download tree.
type Summary struct {
	GeneratedAt time.Time      `json:"generatedAt"`
	Root        string         `json:"root"`
	TotalFiles  int            `json:"totalFiles"`
	TotalBytes  int64          `json:"totalBytes"`
	ByCompany   map[string]int `json:"byCompany"`
	ByYear      map[string]int `json:"byYear"`
	ByPeriod    map[string]int `json:"byPeriod"`
	ByExtension map[string]int `json:"byExtension"`
	Files       []FileEntry    `json:"files"`
}

// Generate walks the download root and builds a summary. The directory
// layout is company/year/period/filename; files outside that depth land in
// Unknown buckets. Staging files, dotfiles and the checkpoint are ignored.
func Generate(root string) (*Summary, error) {
	s := &Summary{
		GeneratedAt: time.Now().UTC(),
		Root:        root,
		ByCompany:   make(map[string]int),
		ByYear:      make(map[string]int),
		ByPeriod:    make(map[string]int),
		ByExtension: make(map[string]int),
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || skipName(d.Name()) {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		entry := entryFor(rel, info.Size())
		s.Files = append(s.Files, entry)
		s.TotalFiles++
		s.TotalBytes += entry.SizeBytes
		s.ByCompany[entry.Company]++
		s.ByYear[entry.Year]++
		s.ByPeriod[entry.Period]++
		s.ByExtension[entry.Extension]++
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk download root %s: %w", root, walkErr)
	}
	return s, nil
}

// Save writes the summary as indented JSON.
func (s *Summary) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if writeErr := os.WriteFile(path, data, 0o644); writeErr != nil {
		return fmt.Errorf("write report %s: %w", path, writeErr)
	}
	return nil
}

// entryFor maps a relative path to a FileEntry using the bucket layout.
func entryFor(rel string, size int64) FileEntry {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	name := parts[len(parts)-1]

	company, year, period := "Unknown", "Unknown", "Unknown"
	if len(parts) >= 4 {
		company, year, period = parts[0], parts[1], parts[2]
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = "(none)"
	}

	return FileEntry{
		Path:      rel,
		Filename:  name,
		SizeBytes: size,
		Extension: ext,
		Company:   company,
		Year:      year,
		Period:    period,
	}
}

// skipName filters out files that are not downloaded documents.
func skipName(name string) bool {
	if strings.HasSuffix(name, stagingSuffix) {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	return name == "checkpoint.json" || strings.HasSuffix(name, ".json.tmp")
}

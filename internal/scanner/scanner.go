package scanner

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediacompress/internal/logging"
)

// Entry is a candidate input file discovered during a scan.
type Entry struct {
	Dir     string
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Options tunes which files a scan returns.
type Options struct {
	// MinAge skips files modified more recently than this.
	MinAge time.Duration
	// Now overrides the clock used for MinAge; nil means time.Now.
	Now func() time.Time
}

// Scan lists the regular, non-hidden files directly inside each directory.
// Directories are visited in the order given; entries within a directory are
// returned in the order os.ReadDir yields them. Directories that are missing or
// unreadable are logged and skipped.
func Scan(dirs []string, opts Options, logger *slog.Logger) []Entry {
	logger = logging.NewComponentLogger(logger, "scanner")
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	var entries []Entry
	for _, dir := range dirs {
		items, err := os.ReadDir(dir)
		if err != nil {
			logging.WarnWithContext(logger, "input directory unreadable; skipping", "input_dir_unreadable",
				logging.String("input_dir", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "create the directory or fix paths.input_dirs"),
				logging.String(logging.FieldImpact, "files in this directory are not processed this cycle"),
			)
			continue
		}
		for _, item := range items {
			name := item.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if opts.MinAge > 0 {
				if age := now().Sub(info.ModTime()); age < opts.MinAge {
					logger.Debug("input too recent; deferring",
						logging.String(logging.FieldFile, name),
						logging.Duration("age", age),
						logging.Duration("min_age", opts.MinAge),
					)
					continue
				}
			}
			entries = append(entries, Entry{
				Dir:     dir,
				Name:    name,
				Path:    path,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
	}
	return entries
}

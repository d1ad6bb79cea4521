package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// exifToolSidecarSuffix is appended by exiftool to the file it rewrites while
// -overwrite_original is in progress.
const exifToolSidecarSuffix = "_exiftool_tmp"

// artifacts are the files a task may create besides its final output.
type artifacts struct {
	dir           string
	temp          string
	passlogPrefix string
}

func newArtifacts(outputPath, token string) artifacts {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return artifacts{
		dir:           dir,
		temp:          filepath.Join(dir, TempName(outputPath, token)),
		passlogPrefix: filepath.Join(dir, ".passlog-"+stem+"-"+token),
	}
}

// TempName returns the hidden, per-attempt name an output is encoded under
// before it is renamed into place: ".<stem>.tmp-<token><ext>".
func TempName(outputPath, token string) string {
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	return "." + strings.TrimSuffix(base, ext) + ".tmp-" + token + ext
}

// sweepPasslogs removes every file starting with the pass log prefix. ffmpeg
// and x265 append their own suffixes (-0.log, .mbtree, .cutree) to it.
func (a artifacts) sweepPasslogs() error {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	prefix := filepath.Base(a.passlogPrefix)
	var errs []error
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if err := removeIfExists(filepath.Join(a.dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SweepStale removes artifacts an interrupted attempt left in dir: hidden temp
// outputs, pass logs and exiftool sidecars. It must only run while no task is
// executing against dir. The number of removed files is returned.
func SweepStale(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !isArtifactName(entry.Name()) {
			continue
		}
		if err := removeIfExists(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func isArtifactName(name string) bool {
	switch {
	case strings.HasSuffix(name, exifToolSidecarSuffix):
		return true
	case strings.HasPrefix(name, ".passlog-"):
		return true
	default:
		return strings.HasPrefix(name, ".") && strings.Contains(name, ".tmp-")
	}
}

// cleanup removes the temp output, the exiftool sidecar and any pass logs.
func (a artifacts) cleanup() error {
	return errors.Join(
		removeIfExists(a.temp),
		removeIfExists(a.temp+exifToolSidecarSuffix),
		a.sweepPasslogs(),
	)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

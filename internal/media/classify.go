package media

import (
	"path/filepath"
	"strings"

	"mediacompress/internal/config"
)

// Kind is the processing category of an input file.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unsupported"
	}
}

// Classifier maps file names to a Kind and an output name.
type Classifier struct {
	// ImageFormat is the published image extension without the dot ("jpg" or "avif").
	ImageFormat string
	// IncludeHEIC treats .heic inputs as images.
	IncludeHEIC bool
}

// NewClassifier builds a classifier from the image settings of cfg.
func NewClassifier(cfg *config.Config) Classifier {
	if cfg == nil {
		return Classifier{ImageFormat: "jpg"}
	}
	return Classifier{ImageFormat: cfg.Image.Format, IncludeHEIC: cfg.Image.IncludeHEIC}
}

// Classify returns the kind of name and the basename it is published under.
// Images take the configured format's extension; everything else keeps its name.
func (c Classifier) Classify(name string) (Kind, string) {
	ext := filepath.Ext(name)
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return KindImage, c.imageOutputName(name, ext)
	case ".heic":
		if c.IncludeHEIC {
			return KindImage, c.imageOutputName(name, ext)
		}
		return KindUnsupported, name
	case ".mp4":
		return KindVideo, name
	default:
		return KindUnsupported, name
	}
}

func (c Classifier) imageOutputName(name, ext string) string {
	format := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.ImageFormat)), ".")
	if format == "" {
		format = "jpg"
	}
	return strings.TrimSuffix(name, ext) + "." + format
}

// Task is one input file scheduled for processing in the current cycle.
type Task struct {
	Name       string
	InputPath  string
	OutputPath string
	Kind       Kind
	// TargetExt is the output extension including the dot.
	TargetExt string
}

// NewTask classifies inputPath and derives its output path under outputDir.
func NewTask(inputPath, outputDir string, c Classifier) Task {
	name := filepath.Base(inputPath)
	kind, outputName := c.Classify(name)
	return Task{
		Name:       name,
		InputPath:  inputPath,
		OutputPath: filepath.Join(outputDir, outputName),
		Kind:       kind,
		TargetExt:  filepath.Ext(outputName),
	}
}

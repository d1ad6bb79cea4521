// Package media classifies input files and derives their output names.
//
// Classification is by case-insensitive extension only: .jpg and .jpeg (plus
// .heic when enabled) are images, .mp4 is video, and everything else is
// unsupported and passed through untouched. Subpackage ffprobe reads stream
// information from video files.
package media

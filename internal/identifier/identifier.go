// Package identifier implements the C4 content-identification pipeline
//: a pure, synchronous function that normalises heterogeneous
// track metadata into a canonical (artist?, title, method) tuple.
//
// Grounded on original_source/sync/identifier.py, re-expressed as a
// total pure function rather than a sequence of early returns over
// mutable state.
package identifier

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dhowden/tag"

	"github.com/navaarsync/navaar/internal/models"
)

// Result is the outcome of a successful identification: the canonical
// (artist?, title, method) tuple.
type Result struct {
	Artist *string
	Title string
	Method models.IdentificationMethod
}

// Input bundles every optional source the pipeline can draw from. All
// fields are optional; the pipeline is total over this space.
type Input struct {
	// LocalFilePath, if set, is read for embedded audio tags (step 1).
	LocalFilePath string
	// ProvidedArtist/ProvidedTitle are endpoint-supplied metadata (step 2),
	// e.g. a TG audio message's performer/title fields.
	ProvidedArtist string
	ProvidedTitle string
	// ProvidedMethod is the method string the caller assigns to step 2's
	// result, since it differs by endpoint (tg_metadata, yt_metadata, sp_metadata).
	ProvidedMethod models.IdentificationMethod
	// Filename, if set, is parsed as a last resort (step 3).
	Filename string
}

var (
	officialParen = regexp.MustCompile(`(?i)\(\s*official[^)]*\)`)
	bracketed = regexp.MustCompile(`\[[^\]]*\]`)
	separators = regexp.MustCompile(`\s*[-–—]\s*`)
)

// openAudioFile is a seam for tests to stub the filesystem read that
// step 1 performs; production code leaves it at its default.
var openAudioFile = func(path string) (tag.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tag.ReadFrom(f)
}

// Identify runs the pipeline (first success wins): embedded tags,
// then provided metadata, then filename parsing. Returns (Result{}, false)
// if every step fails.
func Identify(in Input) (Result, bool) {
	if in.LocalFilePath != "" {
		if r, ok := fromID3(in.LocalFilePath); ok {
			return r, true
		}
	}

	if in.ProvidedTitle != "" {
		method := in.ProvidedMethod
		if method == "" {
			method = models.MethodTgMetadata
		}
		r := Result{Title: in.ProvidedTitle, Method: method}
		if in.ProvidedArtist != "" {
			artist := in.ProvidedArtist
			r.Artist = &artist
		}
		return r, true
	}

	if r, ok := fromFilename(in.Filename); ok {
		return r, true
	}

	return Result{}, false
}

// fromID3 reads embedded audio tags via github.com/dhowden/tag. Accepts
// the first non-empty title; pairs it with the artist tag if present.
func fromID3(path string) (Result, bool) {
	m, err := openAudioFile(path)
	if err != nil || m == nil {
		return Result{}, false
	}
	title := strings.TrimSpace(m.Title())
	if title == "" {
		return Result{}, false
	}
	r := Result{Title: title, Method: models.MethodID3}
	if artist := strings.TrimSpace(m.Artist()); artist != "" {
		r.Artist = &artist
	}
	return r, true
}

// fromFilename strips the extension, any "(Official...)" segment, any
// bracketed segment, then splits on the first "-"/"–"/"—" separator
//.
func fromFilename(filename string) (Result, bool) {
	if filename == "" {
		return Result{}, false
	}

	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	stem = strings.TrimSpace(officialParen.ReplaceAllString(stem, ""))
	stem = strings.TrimSpace(bracketed.ReplaceAllString(stem, ""))

	parts := separators.Split(stem, 2)
	if len(parts) == 2 {
		artist := strings.TrimSpace(parts[0])
		title := strings.TrimSpace(parts[1])
		if artist != "" && title != "" {
			return Result{Artist: &artist, Title: title, Method: models.MethodFilename}, true
		}
	}

	if stem != "" {
		return Result{Title: stem, Method: models.MethodFilename}, true
	}
	return Result{}, false
}

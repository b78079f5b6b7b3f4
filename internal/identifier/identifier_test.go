package identifier

import (
	"errors"
	"testing"

	"github.com/dhowden/tag"

	"github.com/navaarsync/navaar/internal/models"
)

func strPtr(s string) *string { return &s }

func TestIdentifyFromFilename(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		artist   *string
		title    string
	}{
		{"official tag stripped", "Artist - Song (Official Video).mp3", strPtr("Artist"), "Song"},
		{"plain split", "Queen - Bohemian Rhapsody.mp3", strPtr("Queen"), "Bohemian Rhapsody"},
		{"no separator", "some_random_track.mp3", nil, "some_random_track"},
		{"en dash", "Artist – Song.mp3", strPtr("Artist"), "Song"},
		{"em dash", "Artist — Song.mp3", strPtr("Artist"), "Song"},
		{"bracketed tag", "Artist - Song [Lyrics].mp3", strPtr("Artist"), "Song"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, ok := Identify(Input{Filename: c.filename})
			if !ok {
				t.Fatalf("expected identification to succeed for %q", c.filename)
			}
			if r.Method != models.MethodFilename {
				t.Errorf("expected method filename, got %s", r.Method)
			}
			if r.Title != c.title {
				t.Errorf("expected title %q, got %q", c.title, r.Title)
			}
			if (c.artist == nil) != (r.Artist == nil) {
				t.Fatalf("expected artist presence %v, got %v", c.artist != nil, r.Artist != nil)
			}
			if c.artist != nil && *c.artist != *r.Artist {
				t.Errorf("expected artist %q, got %q", *c.artist, *r.Artist)
			}
		})
	}
}

func TestIdentifyProvidedMetadataTakesPrecedenceOverFilename(t *testing.T) {
	r, ok := Identify(Input{
		ProvidedTitle:  "Some Title",
		ProvidedArtist: "Some Artist",
		ProvidedMethod: models.MethodYtMetadata,
		Filename:       "unrelated - name.mp3",
	})
	if !ok {
		t.Fatal("expected identification to succeed")
	}
	if r.Method != models.MethodYtMetadata {
		t.Errorf("expected method yt_metadata, got %s", r.Method)
	}
	if r.Title != "Some Title" || r.Artist == nil || *r.Artist != "Some Artist" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestIdentifyEverythingEmptyFails(t *testing.T) {
	if _, ok := Identify(Input{}); ok {
		t.Fatal("expected identification to fail with no inputs")
	}
}

type fakeMetadata struct {
	tag.Metadata
	title, artist string
}

func (f fakeMetadata) Title() string  { return f.title }
func (f fakeMetadata) Artist() string { return f.artist }

func TestIdentifyFromID3TakesPrecedenceOverEverything(t *testing.T) {
	orig := openAudioFile
	defer func() { openAudioFile = orig }()

	openAudioFile = func(path string) (tag.Metadata, error) {
		return fakeMetadata{title: "Tagged Title", artist: "Tagged Artist"}, nil
	}

	r, ok := Identify(Input{
		LocalFilePath:  "/tmp/whatever.mp3",
		ProvidedTitle:  "Should Not Win",
		Filename:       "also - not this.mp3",
	})
	if !ok {
		t.Fatal("expected identification to succeed")
	}
	if r.Method != models.MethodID3 {
		t.Errorf("expected method id3, got %s", r.Method)
	}
	if r.Title != "Tagged Title" || r.Artist == nil || *r.Artist != "Tagged Artist" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestIdentifyFromID3FallsThroughOnError(t *testing.T) {
	orig := openAudioFile
	defer func() { openAudioFile = orig }()

	openAudioFile = func(path string) (tag.Metadata, error) {
		return nil, errors.New("not an audio file")
	}

	r, ok := Identify(Input{
		LocalFilePath: "/tmp/whatever.mp3",
		Filename:      "Artist - Song.mp3",
	})
	if !ok {
		t.Fatal("expected fallback to filename to succeed")
	}
	if r.Method != models.MethodFilename {
		t.Errorf("expected fallback method filename, got %s", r.Method)
	}
}

func TestIdentifyIsPure(t *testing.T) {
	in := Input{Filename: "Artist - Song (Official Audio).mp3"}
	r1, ok1 := Identify(in)
	r2, ok2 := Identify(in)
	if ok1 != ok2 || r1.Method != r2.Method || r1.Title != r2.Title {
		t.Fatalf("identify is not pure: %+v vs %+v", r1, r2)
	}
	if (r1.Artist == nil) != (r2.Artist == nil) || (r1.Artist != nil && *r1.Artist != *r2.Artist) {
		t.Fatalf("identify is not pure on artist: %+v vs %+v", r1, r2)
	}
}

package osufile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAudioFilenameFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.osu")
	content := "osu file format v14\n\n[General]\nAudioFilename: audio.mp3\nAudioLeadIn: 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := AudioFilename(path); got != "audio.mp3" {
		t.Errorf("AudioFilename = %q, want audio.mp3", got)
	}
}

func TestAudioFilenameAbsentOrUnreadable(t *testing.T) {
	if got := AudioFilename("/nonexistent/path.osu"); got != "" {
		t.Errorf("AudioFilename on missing file = %q, want empty", got)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "map.osu")
	if err := os.WriteFile(path, []byte("[General]\nTitle: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := AudioFilename(path); got != "" {
		t.Errorf("AudioFilename without the field = %q, want empty", got)
	}
}

func TestDeriveStoryboardPathStripsTrailingBracket(t *testing.T) {
	got := DeriveStoryboardPath("/maps/Artist - Title (Mapper) [Difficulty].osu")
	want := "/maps/Artist - Title (Mapper).osb"
	if got != want {
		t.Errorf("DeriveStoryboardPath = %q, want %q", got, want)
	}
}

func TestDeriveStoryboardPathNoSuffix(t *testing.T) {
	got := DeriveStoryboardPath("/maps/Artist - Title.osu")
	want := "/maps/Artist - Title.osb"
	if got != want {
		t.Errorf("DeriveStoryboardPath = %q, want %q", got, want)
	}
}

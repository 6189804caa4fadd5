// Package osufile implements the small pieces of the companion `.osu`
// format the renderer cares about: the audio filename hint and the
// convention for locating the sibling `.osb` storyboard file (spec §6,
// SPEC_FULL §12).
package osufile

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// AudioFilename scans osuPath for a line of the form "AudioFilename: x.mp3"
// and returns the trimmed filename, or "" if the file is unreadable or the
// line is absent.
func AudioFilename(osuPath string) string {
	f, err := os.Open(osuPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	const prefix = "AudioFilename:"
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}

// difficultySuffix matches a trailing "(Mapper)" or "[Difficulty]" group
// (with any leading whitespace) at the end of a filename stem.
var difficultySuffix = regexp.MustCompile(`\s*[\[(][^\])]*[\])]\s*$`)

// DeriveStoryboardPath returns the `.osb` path that accompanies osuPath,
// following the beatmap naming convention: the same directory, extension
// swapped to `.osb`, and the last trailing bracket group stripped from the
// stem (e.g. "Artist - Title (Mapper) [Hard].osu" ->
// "Artist - Title (Mapper).osb"). Only that one group is removed; an
// earlier "(Mapper)" group is kept.
func DeriveStoryboardPath(osuPath string) string {
	dir := filepath.Dir(osuPath)
	base := filepath.Base(osuPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = difficultySuffix.ReplaceAllString(stem, "")
	return filepath.Join(dir, stem+".osb")
}

package core

import (
	"strings"
	"unicode"

	"github.com/kilupskalvis/agentmerge/internal/models"
)

// splitLines splits text on "\n". Empty text is a single empty line.
func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

// FindChangedRegions returns the ascending, non-overlapping runs of lines where
// modified differs from base. Lines past the end of either side compare as empty.
func FindChangedRegions(base, modified []string, ignoreWhitespace bool) []models.Region {
	maxLen := len(base)
	if len(modified) > maxLen {
		maxLen = len(modified)
	}

	var regions []models.Region
	start := -1

	for i := 0; i < maxLen; i++ {
		if linesEqual(lineAt(base, i), lineAt(modified, i), ignoreWhitespace) {
			if start >= 0 {
				regions = append(regions, newRegion(modified, start, i-1))
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}

	if start >= 0 {
		regions = append(regions, newRegion(modified, start, maxLen-1))
	}

	return regions
}

// findChangedRegions diffs using the resolver's whitespace setting
func (r *Resolver) findChangedRegions(base, modified []string) []models.Region {
	return FindChangedRegions(base, modified, r.opts.IgnoreWhitespace)
}

func newRegion(modified []string, start, end int) models.Region {
	return models.Region{
		Start:   start,
		End:     end,
		Content: joinRange(modified, start, end),
	}
}

// joinRange joins lines[start..end] (inclusive), clamped to the slice bounds
func joinRange(lines []string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end >= len(lines) {
		end = len(lines) - 1
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start:end+1], "\n")
}

func lineAt(lines []string, i int) string {
	if i < len(lines) {
		return lines[i]
	}
	return ""
}

func linesEqual(a, b string, ignoreWhitespace bool) bool {
	if !ignoreWhitespace {
		return a == b
	}
	return stripWhitespace(a) == stripWhitespace(b)
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

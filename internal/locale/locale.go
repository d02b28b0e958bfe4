// Package locale resolves the language a request should be served in from
// the Accept-Language header, without mutating any shared state.
package locale

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// maxHeaderLength truncates oversized Accept-Language headers. RFC 7231
// sets no limit, but 4KB is generous for legitimate values.
const maxHeaderLength = 4096

// maxTagLength bounds a single language tag. RFC 5646 asks implementations
// to support tags of at least 35 octets; longer entries are not languages.
const maxTagLength = 35

// languageTag represents a parsed language tag with its quality value.
type languageTag struct {
	lang    string
	quality float64
}

// FirstTag returns the first language tag of an Accept-Language header,
// stripped of quality parameters. Wildcard, empty, and oversized entries
// are skipped. Returns "" when the header carries no usable tag.
func FirstTag(header string) string {
	if len(header) > maxHeaderLength {
		header = header[:maxHeaderLength]
	}

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if idx := strings.Index(part, ";"); idx != -1 {
			part = strings.TrimSpace(part[:idx])
		}
		if part == "" || part == "*" || len(part) > maxTagLength {
			continue
		}
		return part
	}
	return ""
}

// Match returns the best fit from the available languages for an
// Accept-Language header. Quality values are honored and partial tags
// match regional variants (en matches en-US). Falls back to the first
// available language when nothing matches.
func Match(header string, available []string) string {
	if len(available) == 0 {
		return ""
	}
	if header == "" {
		return available[0]
	}

	for _, t := range parseTags(header) {
		for _, avail := range available {
			if normalize(avail) == t.lang {
				return avail
			}
		}
		for _, avail := range available {
			if base(t.lang) == base(normalize(avail)) {
				return avail
			}
		}
	}
	return available[0]
}

// parseTags splits an Accept-Language header into tags ordered by quality
// descending. Invalid quality values default to 1.0.
func parseTags(header string) []languageTag {
	if len(header) > maxHeaderLength {
		header = header[:maxHeaderLength]
	}

	var tags []languageTag
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		quality := 1.0
		lang := part
		if idx := strings.Index(part, ";"); idx != -1 {
			lang = strings.TrimSpace(part[:idx])
			if q, ok := strings.CutPrefix(strings.TrimSpace(part[idx+1:]), "q="); ok {
				if v, err := strconv.ParseFloat(q, 64); err == nil && v >= 0 && v <= 1 {
					quality = v
				}
			}
		}

		if lang != "" && lang != "*" && len(lang) <= maxTagLength {
			tags = append(tags, languageTag{lang: normalize(lang), quality: quality})
		}
	}

	slices.SortStableFunc(tags, func(a, b languageTag) int {
		return cmp.Compare(b.quality, a.quality)
	})
	return tags
}

func normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func base(tag string) string {
	b, _, _ := strings.Cut(tag, "-")
	return b
}

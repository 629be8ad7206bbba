package store

import (
	"sort"
	"strings"
)

// reindexUnsafe recomputes the word-index entries for path's display name.
// Caller must hold d.mu for writing.
func (d *Database) reindexUnsafe(path string) {
	d.deindexUnsafe(path)
	for _, word := range d.wordsUnsafe(path) {
		set, ok := d.wordIndex[word]
		if !ok {
			set = make(map[string]struct{})
			d.wordIndex[word] = set
		}
		set[path] = struct{}{}
	}
}

func (d *Database) deindexUnsafe(path string) {
	for word, set := range d.wordIndex {
		if _, ok := set[path]; ok {
			delete(set, path)
			if len(set) == 0 {
				delete(d.wordIndex, word)
			}
		}
	}
}

// wordsUnsafe extracts the case-folded, stopword-filtered words making up
// path's display name. Caller must hold d.mu.
func (d *Database) wordsUnsafe(path string) []string {
	t, ok := d.tracks[path]
	if !ok {
		return nil
	}
	display := strings.Join([]string{
		d.partUnsafe(t, "display", "artist"),
		d.partUnsafe(t, "display", "album"),
		d.partUnsafe(t, "display", "title"),
	}, " ")

	var words []string
	for _, raw := range strings.FieldsFunc(display, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	}) {
		w := strings.ToLower(raw)
		if _, stop := d.stopwords[w]; stop || w == "" {
			continue
		}
		words = append(words, w)
	}
	return words
}

// Search performs a token-based AND match over the word index: every term
// (case-folded) must appear in a track's indexed display name for that
// track to be returned. Results are sorted by path.
func (d *Database) Search(terms []string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(terms) == 0 {
		return nil
	}
	var candidates map[string]struct{}
	for _, term := range terms {
		set, ok := d.wordIndex[strings.ToLower(term)]
		if !ok {
			return nil
		}
		if candidates == nil {
			candidates = make(map[string]struct{}, len(set))
			for p := range set {
				candidates[p] = struct{}{}
			}
			continue
		}
		for p := range candidates {
			if _, ok := set[p]; !ok {
				delete(candidates, p)
			}
		}
	}
	out := make([]string, 0, len(candidates))
	for p := range candidates {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Part computes the display or sort string for (track, context, part),
// applying the first configured namepart rule whose part/context match
// and whose path glob matches the track, falling back to the raw tag
// metadata field if no rule applies.
func (d *Database) Part(path, context, part string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tracks[path]
	if !ok {
		return "", ErrNoSuchTrack
	}
	return d.partUnsafe(t, context, part), nil
}

func (d *Database) partUnsafe(t *Track, context, part string) string {
	raw := rawPart(t, part)
	for _, rule := range d.nameparts {
		if rule.Part != part || rule.Context != context {
			continue
		}
		if rule.PathGlob != "" && !globMatch(rule.PathGlob, t.Path) {
			continue
		}
		if rule.Pattern.MatchString(raw) {
			return rule.Pattern.ReplaceAllString(raw, rule.Replacement)
		}
	}
	return raw
}

func rawPart(t *Track, part string) string {
	switch part {
	case "artist":
		return t.Artist
	case "album":
		return t.Album
	case "title":
		if t.Title != "" {
			return t.Title
		}
		return t.Path
	case "ext":
		if i := strings.LastIndex(t.Path, "."); i >= 0 {
			return t.Path[i:]
		}
		return ""
	default:
		return ""
	}
}

// Resolve maps an alias — a display path synthesised from name parts like
// "{artist}/{album}/{title}" — back to the real track path it was built
// from, by recomputing the alias for every known track and matching.
func (d *Database) Resolve(alias string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for path, t := range d.tracks {
		built := d.partUnsafe(t, "display", "artist") + "/" +
			d.partUnsafe(t, "display", "album") + "/" +
			d.partUnsafe(t, "display", "title")
		if built == alias {
			return path, nil
		}
	}
	return "", ErrNoSuchTrack
}

// Files returns known track paths directly inside dir (non-recursive)
// whose base name matches the optional regex (nil matches everything).
func (d *Database) Files(dir string, re *RegexMatcher) []string {
	return d.listUnder(dir, re, false)
}

// Dirs returns immediate subdirectories of dir that contain at least one
// known track (directly or transitively), filtered by the optional regex.
func (d *Database) Dirs(dir string, re *RegexMatcher) []string {
	return d.listUnder(dir, re, true)
}

func (d *Database) listUnder(dir string, re *RegexMatcher, wantDirs bool) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	prefix := strings.TrimSuffix(dir, "/") + "/"
	seen := make(map[string]struct{})
	var out []string
	for path := range d.tracks {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		var entry string
		if wantDirs {
			idx := strings.Index(rest, "/")
			if idx < 0 {
				continue
			}
			entry = rest[:idx]
		} else {
			if strings.Contains(rest, "/") {
				continue
			}
			entry = rest
		}
		if re != nil && !re.MatchString(entry) {
			continue
		}
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		out = append(out, entry)
	}
	sort.Strings(out)
	return out
}

package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// FileInfo is the metadata extracted from an upload's caption or, failing
// that, inferred from its filename.
type FileInfo struct {
	Title   string
	Year    int
	Quality string
	Part    string
}

var (
	yearRe      = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	bareYearRe  = regexp.MustCompile(`\d{4}`)
	extensionRe = regexp.MustCompile(`\.[^.]+$`)

	qualityRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(4K|2160p|1080p|720p|480p|360p)\b`),
		regexp.MustCompile(`(?i)\b(HD|FHD|UHD|SD)\b`),
		regexp.MustCompile(`(?i)\b(BluRay|BRRip|DVDRip|WEBRip|HDTV|CAMRip|DVDScr)\b`),
	}

	partRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(Season|S)\s*\d+\s*(Episode|E)\s*\d+\b`),
		regexp.MustCompile(`(?i)\bS\d+E\d+\b`),
		regexp.MustCompile(`(?i)\b(Part|Pt)\s*\d+\b`),
		regexp.MustCompile(`(?i)\b(Episode|Ep)\s*\d+\b`),
	}

	releaseTagRe = regexp.MustCompile(`(?i)\b(x264|x265|AAC|DTS|AC3|MP3|5\.1|7\.1|RARBG|YTS|YIFY)\b`)
	separatorRe  = regexp.MustCompile(`[._\-\[\]()]`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// ParseCaption parses the "Title | Year | Quality | Part" upload caption
// grammar. It returns nil when the caption has fewer than three fields or is
// missing a title or quality; callers then fall back to filename inference.
func ParseCaption(caption string) *FileInfo {
	if caption == "" {
		return nil
	}
	fields := strings.Split(caption, "|")
	if len(fields) < 3 {
		return nil
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	info := &FileInfo{
		Title:   fields[0],
		Quality: fields[2],
		Part:    "Complete",
	}
	if info.Title == "" || info.Quality == "" {
		return nil
	}
	if m := bareYearRe.FindString(fields[1]); m != "" {
		info.Year, _ = strconv.Atoi(m)
	}
	if len(fields) > 3 && fields[3] != "" {
		info.Part = fields[3]
	}
	return info
}

// InferFromFilename extracts what it can from a filename: a four-digit year,
// a quality tag, a season/episode/part marker, and whatever remains as the
// title once separators and release-group tags are stripped.
func InferFromFilename(filename string) *FileInfo {
	info := &FileInfo{Quality: "HD", Part: "Complete"}

	name := extensionRe.ReplaceAllString(filename, "")

	if m := yearRe.FindString(name); m != "" {
		info.Year, _ = strconv.Atoi(m)
		name = strings.Replace(name, m, "", 1)
	}
	for _, re := range qualityRes {
		if m := re.FindString(name); m != "" {
			info.Quality = m
			name = strings.Replace(name, m, "", 1)
			break
		}
	}
	for _, re := range partRes {
		if m := re.FindString(name); m != "" {
			info.Part = m
			name = strings.Replace(name, m, "", 1)
			break
		}
	}

	title := separatorRe.ReplaceAllString(name, " ")
	title = releaseTagRe.ReplaceAllString(title, "")
	title = spaceRe.ReplaceAllString(title, " ")
	info.Title = strings.TrimSpace(title)

	if info.Title == "" {
		// Last resort: the raw filename with separators spaced out.
		info.Title = strings.TrimSpace(spaceRe.ReplaceAllString(
			strings.NewReplacer(".", " ", "_", " ").Replace(filename), " "))
	}
	return info
}

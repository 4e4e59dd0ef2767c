package ingest

import "testing"

func TestParseCaption(t *testing.T) {
	tests := []struct {
		name    string
		caption string
		want    *FileInfo
	}{
		{
			name:    "full grammar",
			caption: "The Matrix | 1999 | 1080p | Part 1",
			want:    &FileInfo{Title: "The Matrix", Year: 1999, Quality: "1080p", Part: "Part 1"},
		},
		{
			name:    "three fields defaults part",
			caption: "Inception | 2010 | 4K",
			want:    &FileInfo{Title: "Inception", Year: 2010, Quality: "4K", Part: "Complete"},
		},
		{
			name:    "year field without digits",
			caption: "Old Film | unknown | DVDRip | Complete",
			want:    &FileInfo{Title: "Old Film", Year: 0, Quality: "DVDRip", Part: "Complete"},
		},
		{name: "empty caption", caption: "", want: nil},
		{name: "too few fields", caption: "Just A Title | 2020", want: nil},
		{name: "missing title", caption: " | 2020 | 720p", want: nil},
		{name: "missing quality", caption: "Title | 2020 | ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCaption(tt.caption)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("ParseCaption(%q) = %+v, want %+v", tt.caption, got, tt.want)
			}
			if got == nil {
				return
			}
			if *got != *tt.want {
				t.Errorf("ParseCaption(%q) = %+v, want %+v", tt.caption, *got, *tt.want)
			}
		})
	}
}

func TestInferFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     FileInfo
	}{
		{
			name:     "dotted release name",
			filename: "The.Matrix.1999.1080p.BluRay.x264.mkv",
			want:     FileInfo{Title: "The Matrix", Year: 1999, Quality: "1080p", Part: "Complete"},
		},
		{
			name:     "series episode marker",
			filename: "Breaking.Bad.S01E02.720p.mkv",
			want:     FileInfo{Title: "Breaking Bad", Year: 0, Quality: "720p", Part: "S01E02"},
		},
		{
			name:     "part marker",
			filename: "Campaign Part 2 HDTV.mp4",
			want:     FileInfo{Title: "Campaign", Year: 0, Quality: "HDTV", Part: "Part 2"},
		},
		{
			name:     "no recognizable tags",
			filename: "holiday-clip.mov",
			want:     FileInfo{Title: "holiday clip", Year: 0, Quality: "HD", Part: "Complete"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferFromFilename(tt.filename)
			if *got != tt.want {
				t.Errorf("InferFromFilename(%q) = %+v, want %+v", tt.filename, *got, tt.want)
			}
		})
	}
}

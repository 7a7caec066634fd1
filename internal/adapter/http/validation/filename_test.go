package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanUploadName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "video.mp4", "video.mp4"},
		{"spaces kept", "my holiday film.mkv", "my holiday film.mkv"},
		{"upper case extension", "CLIP.AVI", "CLIP.AVI"},
		{"unicode kept", "vidéo 動画.mp4", "vidéo 動画.mp4"},
		{"unix path dropped", "/home/me/videos/a.mp4", "a.mp4"},
		{"windows path dropped", `C:\Users\me\a.mp4`, "a.mp4"},
		{"traversal dropped", "../../etc/passwd.mp4", "passwd.mp4"},
		{"quote replaced", `say "hi".mp4`, "say _hi_.mp4"},
		{"newline replaced", "a\r\nb.mp4", "a__b.mp4"},
		{"control replaced", "a\x00\x07\x7fb.mp4", "a___b.mp4"},
		{"shell meta replaced", "a*b?c<d>e|f.mkv", "a_b_c_d_e_f.mkv"},
		{"surrounding space trimmed", "  a.mp4  ", "a.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanUploadName(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanUploadName_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"no extension", "video", ErrDisallowedFileType},
		{"image", "photo.jpg", ErrDisallowedFileType},
		{"webm", "clip.webm", ErrDisallowedFileType},
		{"double extension", "clip.mp4.exe", ErrDisallowedFileType},
		{"directory only", "videos/", ErrDisallowedFileType},
		{"empty", "", ErrDisallowedFileType},
		{"only extension", ".mp4", ErrInvalidFilename},
		{"only dangerous chars", `"/.mp4`, ErrInvalidFilename},
		{"dots", "...mp4", ErrInvalidFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CleanUploadName(tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCleanUploadName_Long(t *testing.T) {
	got, err := CleanUploadName(strings.Repeat("a", 300) + ".mkv")
	require.NoError(t, err)
	assert.Len(t, got, maxFilenameLength)
	assert.True(t, strings.HasSuffix(got, ".mkv"))

	// multi-byte runes are never split
	got, err = CleanUploadName(strings.Repeat("é", 200) + ".mp4")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), maxFilenameLength)
	assert.True(t, strings.HasSuffix(got, "é.mp4"))
}

func TestAllowedExtension(t *testing.T) {
	assert.True(t, AllowedExtension("a.mp4"))
	assert.True(t, AllowedExtension("a.MKV"))
	assert.False(t, AllowedExtension("a.mov"))
	assert.False(t, AllowedExtension("mp4"))
}

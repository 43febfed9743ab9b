package husk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"leading slash", "/css/site.css", "css/site.css"},
		{"trailing slash", "css/", "css"},
		{"both slashes", "/css/", "css"},
		{"empty string", "", "."},
		{"root slash", "/", "."},
		{"dot", ".", "."},
		{"simple", "index.html", "index.html"},
		{"nested path", "/a/b/c.txt", "a/b/c.txt"},
		{"multiple leading slashes", "///css/site.css", "css/site.css"},
		{"multiple trailing slashes", "css///", "css"},
		{"only slashes", "///", "."},
		{"internal double slashes", "css//site.css", "css/site.css"},
		{"internal multiple slashes", "a///b//c", "a/b/c"},
		// Dot and dotdot segments are preserved (for ValidArchivePath to reject)
		{"dotdot in middle", "a/../b", "a/../b"},
		{"dotdot at start", "../etc", "../etc"},
		{"dotdot only", "..", ".."},
		{"dot in middle", "a/./b", "a/./b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.input))
		})
	}
}

func TestValidArchivePath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple", "index.html", true},
		{"nested", "posts/2024/hello.html", true},
		{"empty", "", false},
		{"root", ".", false},
		{"dotdot segment", "a/../b", false},
		{"dot segment", "a/./b", false},
		{"leading slash", "/index.html", false},
		{"trailing slash", "css/", false},
		{"empty segment", "a//b", false},
		{"bare dotdot", "..", false},
		{"too long", strings.Repeat("a", maxPathLen+1), false},
		{"max length", strings.Repeat("a", maxPathLen), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidArchivePath(tt.input))
		})
	}
}

package pin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Pin
	}{
		{"plain", "seaborn==0.13.2\n", Pin{Name: "seaborn", Version: "0.13.2"}},
		{"comments and blanks", "# docs\n\nseaborn == 0.13.2  # pinned\n", Pin{Name: "seaborn", Version: "0.13.2"}},
		{"extras", "seaborn[stats, dev]==0.13.2", Pin{Name: "seaborn", Extras: []string{"stats", "dev"}, Version: "0.13.2"}},
		{"marker", "seaborn==0.13.2 ; python_version >= \"3.9\"", Pin{Name: "seaborn", Version: "0.13.2", Marker: "python_version >= \"3.9\""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("seaborn==0.13.2\nnumpy==2.0\n"))
	assert.ErrorIs(t, err, ErrMultipleRequirements)

	_, err = Parse(strings.NewReader("# nothing\n\n"))
	assert.ErrorIs(t, err, ErrNoRequirement)

	_, err = Parse(strings.NewReader("seaborn>=0.13\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestString(t *testing.T) {
	p := Pin{Name: "seaborn", Extras: []string{"stats"}, Version: "0.13.2", Marker: "os_name == \"posix\""}
	assert.Equal(t, `seaborn[stats]==0.13.2; os_name == "posix"`, p.String())
}

func TestWriteFileKeepsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc-requirements.txt")
	require.NoError(t, os.WriteFile(path, []byte("# Documentation source\n\nseaborn==0.13.1  # bumped by bot\n"), 0o644))

	p, err := ParseFile(path)
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, p.WithVersion("0.13.2")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Documentation source\n\nseaborn==0.13.2  # bumped by bot\n", string(data))

	got, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0.13.2", got.Version)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestNormalizeTag(t *testing.T) {
	assert.Equal(t, "0.13.2", NormalizeTag("v0.13.2"))
	assert.Equal(t, "0.13.2", NormalizeTag("V0.13.2"))
	assert.Equal(t, "0.13.2", NormalizeTag(" 0.13.2 "))
	assert.Equal(t, "version-1", NormalizeTag("version-1"))
	assert.Equal(t, "v", NormalizeTag("v"))
}

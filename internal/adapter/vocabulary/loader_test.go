package vocabulary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/adru-export/internal/domain"
)

func TestDefault(t *testing.T) {
	v, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{domain.NamespaceJRU, domain.NamespaceETCS, domain.NamespaceDRU}, v.Keys())

	jru, ok := v.Namespace(domain.NamespaceJRU)
	require.True(t, ok)
	assert.Equal(t, "JRU (", jru.Marker)
	assert.True(t, jru.StripPrefix)
	assert.Len(t, jru.Attributes, 448)
	assert.Contains(t, jru.Attributes, "NID_C")

	etcs, _ := v.Namespace(domain.NamespaceETCS)
	assert.Equal(t, "ETCS ON-BOARD PROPRIETARY JURIDICAL DATA (", etcs.Marker)
	assert.False(t, etcs.StripPrefix)
	assert.Len(t, etcs.Attributes, 9)

	dru, _ := v.Namespace(domain.NamespaceDRU)
	assert.Equal(t, "DRU ETCS (", dru.Marker)
	assert.Len(t, dru.Attributes, 189)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	content := `namespaces:
  - key: jru
    marker: "JRU ("
    strip_prefix: true
    attributes: [NID_C, FOO]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"NID_C", "FOO"}, v.Namespaces[0].Attributes)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty document", "", "empty"},
		{"unknown field", "namespaces:\n  - key: jru\n    marker: x\n    colour: red\n", "colour"},
		{"duplicate attribute", "namespaces:\n  - key: jru\n    marker: x\n    attributes: [A, A]\n", "duplicate attribute"},
		{"reserved key", "namespaces:\n  - key: file\n    marker: x\n", "reserved"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

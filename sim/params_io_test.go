package sim

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInto_ReplacesFields(t *testing.T) {
	p := stemParameters()
	doc := `
name: slow stem
organ_type: stem
sub_type: 1
lb: 5
la: 1
ln: 2
nob: 3
r: 0.5
dx: 0.25
`
	require.NoError(t, ReadInto(p, strings.NewReader(doc)))
	assert.Equal(t, "slow stem", p.Name)
	assert.Equal(t, 5.0, p.Lb)
	assert.Equal(t, 3, p.Nob)
	assert.Equal(t, 0.25, p.Dx)
	assert.Equal(t, []int{2}, p.Successor, "fields absent from the document are kept")
}

func TestReadInto_StrictAndValidated(t *testing.T) {
	p := stemParameters()
	err := ReadInto(p, strings.NewReader("lb: 1\nunknown_field: 2\n"))
	assert.Error(t, err)

	p = stemParameters()
	err = ReadInto(p, strings.NewReader("dx: -1\n"))
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestWriteRead_SingleSet(t *testing.T) {
	// GIVEN a set with successors and deviations
	p := seedParameters()
	p.Lbs = 0.3

	// WHEN writing and reading it back
	var buf bytes.Buffer
	require.NoError(t, Write(p, &buf))
	assert.Contains(t, buf.String(), "organ_type: seed")
	assert.Contains(t, buf.String(), "- root")

	got := &RandomParameterSet{}
	require.NoError(t, ReadInto(got, &buf))

	// THEN nothing is lost
	assert.Equal(t, p, got)
}

func TestParameterFile_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	sets := []*RandomParameterSet{stemParameters(), lateralParameters()}
	require.NoError(t, SaveParameterFile(path, sets))

	got, err := LoadParameterFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "main stem", got[0].Name)
	assert.Equal(t, 2, got[1].SubType)
	assert.InDelta(t, 89.0/19.0, got[0].Ln, 1e-15)
}

func TestLoadParameterFile_Testdata(t *testing.T) {
	sets, err := LoadParameterFile("testdata/stem_parameters.yaml")
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.InDelta(t, 100, sets[0].Parameter("k"), 1e-9)
}

func TestReadParameterSets_InvalidSet(t *testing.T) {
	doc := `
parameters:
  - name: broken
    organ_type: root
    dx: 1
    successor: [1, 2]
    successor_p: [0.3, 0.3]
`
	_, err := ReadParameterSets(strings.NewReader(doc))
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestLoadParameterFile_Missing(t *testing.T) {
	_, err := LoadParameterFile(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

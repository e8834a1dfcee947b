package richtext_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wudi/mcfn/richtext"
)

func TestRoundTripText(t *testing.T) {
	encoded, err := richtext.Encode(`{"text":"hello","bold":true,"color":"yellow"}`)
	require.NoError(t, err)

	comp, err := richtext.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, richtext.Text, comp.Kind)
	require.Equal(t, "hello", comp.Text)
	require.True(t, comp.Styles.Bold)
	require.Equal(t, "yellow", comp.Styles.Color)
}

func TestRoundTripScore(t *testing.T) {
	encoded, err := richtext.Encode(`{"score":{"name":"@s","objective":"health"}}`)
	require.NoError(t, err)

	comp, err := richtext.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, richtext.Score, comp.Kind)
	require.Equal(t, "@s", comp.Name)
	require.Equal(t, "health", comp.Objective)
}

func TestRoundTripArray(t *testing.T) {
	encoded, err := richtext.Encode(`[{"text":"a"},{"text":"b","italic":true}]`)
	require.NoError(t, err)

	comp, err := richtext.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, richtext.Array, comp.Kind)
	require.Len(t, comp.Children, 2)
	require.Equal(t, "a", comp.Children[0].Text)
	require.True(t, comp.Children[1].Styles.Italic)
}

func TestDefaultColorNotRecorded(t *testing.T) {
	encoded, err := richtext.Encode(`{"text":"plain","color":"white"}`)
	require.NoError(t, err)

	comp, err := richtext.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, "", comp.Styles.Color)
}

func TestInvalidJSONIsSurfaced(t *testing.T) {
	_, err := richtext.Encode(`{not json`)
	require.Error(t, err)
}

func TestUnrecognizedShapeFallsBackToRaw(t *testing.T) {
	encoded, err := richtext.Encode(`42`)
	require.NoError(t, err)

	comp, err := richtext.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, richtext.Raw, comp.Kind)
	require.Equal(t, "42", comp.RawText)
}

func TestDumpSurfacesStyleMetadata(t *testing.T) {
	encoded, err := richtext.Encode(`{"text":"v=","color":"yellow","bold":true}`)
	require.NoError(t, err)

	comp, err := richtext.Decode(encoded)
	require.NoError(t, err)
	dump := comp.Dump()
	require.Contains(t, dump, "bold")
	require.Contains(t, dump, "color=yellow")
	require.Contains(t, dump, `"v="`)
}

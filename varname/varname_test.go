package varname_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wudi/mcfn/varname"
)

func TestFromIndexMatchesWorkedExamples(t *testing.T) {
	cases := map[int]string{0: "a", 25: "z", 26: "aa", 27: "ab"}
	for index, want := range cases {
		got, err := varname.FromIndex(index)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestToIndexMatchesWorkedExamples(t *testing.T) {
	cases := map[string]int{"a": 0, "z": 25, "aa": 26, "ab": 27}
	for name, want := range cases {
		got, err := varname.ToIndex(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestRoundTrip(t *testing.T) {
	for i := 0; i < 500; i++ {
		name, err := varname.FromIndex(i)
		require.NoError(t, err)
		back, err := varname.ToIndex(name)
		require.NoError(t, err)
		require.Equal(t, i, back)
	}
}

func TestToIndexRejectsInvalidCharacters(t *testing.T) {
	_, err := varname.ToIndex("A1")
	require.Error(t, err)
}

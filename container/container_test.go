package container_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wudi/mcfn/container"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	exe := &container.Executable{
		Namespace: "demo",
		Functions: map[string][]byte{
			"main": {1, 2, 3},
			"tick": {4, 5},
		},
	}

	encoded, err := container.Encode(exe)
	require.NoError(t, err)

	decoded, err := container.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, exe.Namespace, decoded.Namespace)
	require.Equal(t, exe.Functions, decoded.Functions)
}

func TestWriteReadRoundTripsThroughCompression(t *testing.T) {
	exe := &container.Executable{
		Namespace: "demo",
		Functions: map[string][]byte{"main": {9, 9, 9, 9}},
	}

	compressed, err := container.Write(exe)
	require.NoError(t, err)

	decoded, err := container.Read(compressed)
	require.NoError(t, err)
	require.Equal(t, exe.Namespace, decoded.Namespace)
	require.Equal(t, exe.Functions, decoded.Functions)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := container.Decode([]byte("XXXX\x04\x00\x00\x00"))
	require.Error(t, err)
}

func TestDecodeRejectsOldVersion(t *testing.T) {
	data := append([]byte{'M', 'C', 'F', 'N'}, 3, 0, 0, 0)
	_, err := container.Decode(data)
	require.Error(t, err)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := container.Decode([]byte{'M', 'C', 'F', 'N', 4, 3, 'a', 'b'})
	require.Error(t, err)
}

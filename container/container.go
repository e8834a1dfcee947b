// Package container implements the mcfn executable container: a
// DEFLATE-compressed, length-prefixed binary format holding a namespace and
// a table of named, already-encoded function instruction blocks.
package container

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the fixed 4-byte header every container starts with.
var Magic = [4]byte{'M', 'C', 'F', 'N'}

// Version is the format version this package reads and writes. Version 3
// (the predecessor) assigned two opcodes the same wire value; version 4 is
// the corrected, consecutive opcode enumeration and the only version this
// package accepts.
const Version = 4

const (
	maxNamespaceLen  = 255
	maxFunctionCount = 1<<16 - 1
	maxFunctionName  = 255
	maxBlockLen      = 1<<16 - 1
)

// Executable is a decoded container: a namespace plus its function table,
// each function already compiled to its packed instruction block.
type Executable struct {
	Namespace string
	Functions map[string][]byte
}

// Encode builds the uncompressed container byte layout from e.
func Encode(e *Executable) ([]byte, error) {
	nsBytes := []byte(e.Namespace)
	if len(nsBytes) > maxNamespaceLen {
		return nil, fmt.Errorf("container: namespace %q too long", e.Namespace)
	}
	if len(e.Functions) > maxFunctionCount {
		return nil, fmt.Errorf("container: too many functions (%d)", len(e.Functions))
	}

	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(Version)
	buf.WriteByte(byte(len(nsBytes)))
	buf.Write(nsBytes)

	var countBytes [2]byte
	binary.BigEndian.PutUint16(countBytes[:], uint16(len(e.Functions)))
	buf.Write(countBytes[:])

	for name, data := range e.Functions {
		nameBytes := []byte(name)
		if len(nameBytes) > maxFunctionName {
			return nil, fmt.Errorf("container: function name %q too long", name)
		}
		if len(data) > maxBlockLen {
			return nil, fmt.Errorf("container: function %q instruction block too long", name)
		}
		buf.WriteByte(byte(len(nameBytes)))
		buf.Write(nameBytes)

		var blockLen [2]byte
		binary.BigEndian.PutUint16(blockLen[:], uint16(len(data)))
		buf.Write(blockLen[:])
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// Decode parses the uncompressed container layout Encode produces.
func Decode(data []byte) (*Executable, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != Magic {
		return nil, fmt.Errorf("container: invalid magic number")
	}

	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("container: missing version byte")
	}
	if version != Version {
		return nil, fmt.Errorf("container: unsupported format version %d", version)
	}

	nsLen, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("container: missing namespace length")
	}
	nsBytes := make([]byte, nsLen)
	if _, err := io.ReadFull(r, nsBytes); err != nil {
		return nil, fmt.Errorf("container: incomplete namespace bytes")
	}

	var countBytes [2]byte
	if _, err := io.ReadFull(r, countBytes[:]); err != nil {
		return nil, fmt.Errorf("container: missing function count")
	}
	count := binary.BigEndian.Uint16(countBytes[:])

	functions := make(map[string][]byte, count)
	for i := 0; i < int(count); i++ {
		nameLen, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("container: unexpected end of file while reading function name length")
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return nil, fmt.Errorf("container: unexpected end of file while reading function name")
		}

		var blockLenBytes [2]byte
		if _, err := io.ReadFull(r, blockLenBytes[:]); err != nil {
			return nil, fmt.Errorf("container: unexpected end of file while reading instruction block length")
		}
		blockLen := binary.BigEndian.Uint16(blockLenBytes[:])
		block := make([]byte, blockLen)
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, fmt.Errorf("container: unexpected end of file while reading instruction block")
		}

		functions[string(nameBytes)] = block
	}

	return &Executable{Namespace: string(nsBytes), Functions: functions}, nil
}

// Write compresses the container layout of e with DEFLATE, the on-disk form
// written to a `.mcfn` file.
func Write(e *Executable) ([]byte, error) {
	plain, err := Encode(e)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	w, err := flate.NewWriter(&out, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("container: %w", err)
	}
	if _, err := w.Write(plain); err != nil {
		return nil, fmt.Errorf("container: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("container: %w", err)
	}
	return out.Bytes(), nil
}

// Read decompresses and decodes an on-disk container.
func Read(data []byte) (*Executable, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("container: decompression failed: %w", err)
	}
	return Decode(plain)
}

// Package meshio reads and writes triangle meshes in the STL and 3MF
// interchange formats used by slicers.
package meshio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/bladesmith/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	stlHeaderSize = 80
	// stlRecordSize is normal, three vertices and the attribute count.
	stlRecordSize = 12*4 + 2
	stlLabel      = "bladesmith binary STL"
)

// WriteSTL writes m as binary STL: an 80-byte header, a little-endian
// uint32 triangle count, then per triangle the unit normal and three
// vertices as float32 triples followed by a zero uint16 attribute count.
func WriteSTL(w io.Writer, m *kernel.Mesh) error {
	if uint64(m.FaceCount()) > math.MaxUint32 {
		return &kernel.ResourceLimitError{Resource: "stl triangles", Required: int64(m.FaceCount()), Limit: math.MaxUint32}
	}
	bw := bufio.NewWriter(w)
	var header [stlHeaderSize]byte
	copy(header[:], stlLabel)
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("meshio: write stl header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(m.FaceCount())); err != nil {
		return fmt.Errorf("meshio: write stl count: %w", err)
	}

	var rec [stlRecordSize]byte
	put := func(off int, v v3.Vec) {
		binary.LittleEndian.PutUint32(rec[off:], math.Float32bits(float32(v.X)))
		binary.LittleEndian.PutUint32(rec[off+4:], math.Float32bits(float32(v.Y)))
		binary.LittleEndian.PutUint32(rec[off+8:], math.Float32bits(float32(v.Z)))
	}
	for i, f := range m.Faces {
		put(0, m.FaceNormal(i))
		for j, vi := range f {
			put(12+12*j, m.Vertices[vi])
		}
		binary.LittleEndian.PutUint16(rec[48:], 0)
		if _, err := bw.Write(rec[:]); err != nil {
			return fmt.Errorf("meshio: write stl triangle %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("meshio: flush stl: %w", err)
	}
	return nil
}

// ReadSTL reads binary or ASCII STL and welds coincident vertices into an
// indexed mesh.
func ReadSTL(r io.Reader) (*kernel.Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("meshio: read stl: %w", err)
	}
	var soup [][3]v3.Vec
	if len(data) >= stlHeaderSize+4 {
		n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
		if int64(len(data)) == stlHeaderSize+4+int64(n)*stlRecordSize {
			soup = readBinary(data[stlHeaderSize+4:], int(n))
		}
	}
	if soup == nil {
		trimmed := bytes.TrimLeft(data, " \t\r\n")
		if !bytes.HasPrefix(trimmed, []byte("solid")) {
			return nil, &kernel.InvalidGeometryError{Reason: "not an STL file"}
		}
		if soup, err = readASCII(trimmed); err != nil {
			return nil, err
		}
	}
	m := kernel.Weld(soup, kernel.DefaultWeldTolerance)
	if m.IsEmpty() {
		return nil, &kernel.InvalidGeometryError{Reason: "stl holds no triangles"}
	}
	return m, nil
}

func readBinary(data []byte, n int) [][3]v3.Vec {
	soup := make([][3]v3.Vec, n)
	get := func(off int) v3.Vec {
		return v3.Vec{
			X: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))),
			Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:]))),
			Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:]))),
		}
	}
	for i := range soup {
		base := i * stlRecordSize
		soup[i] = [3]v3.Vec{get(base + 12), get(base + 24), get(base + 36)}
	}
	return soup
}

var errVertexCount = errors.New("facet does not have three vertices")

func readASCII(data []byte) ([][3]v3.Vec, error) {
	var soup [][3]v3.Vec
	var tri [3]v3.Vec
	count := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "vertex":
			if len(fields) != 4 || count == 3 {
				return nil, &kernel.InvalidGeometryError{Reason: fmt.Sprintf("stl line %d", line), Err: errVertexCount}
			}
			var xyz [3]float64
			for k := range xyz {
				v, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, &kernel.InvalidGeometryError{Reason: fmt.Sprintf("stl line %d", line), Err: err}
				}
				xyz[k] = v
			}
			tri[count] = v3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}
			count++
		case "endloop":
			if count != 3 {
				return nil, &kernel.InvalidGeometryError{Reason: fmt.Sprintf("stl line %d", line), Err: errVertexCount}
			}
			soup = append(soup, tri)
			count = 0
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("meshio: scan stl: %w", err)
	}
	return soup, nil
}

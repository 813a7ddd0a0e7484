package meshio

import (
	"fmt"
	"io"

	"github.com/hpinc/go3mf"

	"github.com/chazu/bladesmith/pkg/kernel"
)

// Write3MF writes m as a 3MF package holding one millimetre-unit object.
func Write3MF(w io.Writer, m *kernel.Mesh, name string) error {
	mesh := new(go3mf.Mesh)
	mesh.Vertices.Vertex = make([]go3mf.Point3D, len(m.Vertices))
	for i, v := range m.Vertices {
		mesh.Vertices.Vertex[i] = go3mf.Point3D{float32(v.X), float32(v.Y), float32(v.Z)}
	}
	mesh.Triangles.Triangle = make([]go3mf.Triangle, len(m.Faces))
	for i, f := range m.Faces {
		mesh.Triangles.Triangle[i] = go3mf.Triangle{V1: uint32(f[0]), V2: uint32(f[1]), V3: uint32(f[2])}
	}

	model := &go3mf.Model{Units: go3mf.UnitMillimeter}
	model.Resources.Objects = append(model.Resources.Objects, &go3mf.Object{
		ID:   1,
		Name: name,
		Type: go3mf.ObjectTypeModel,
		Mesh: mesh,
	})
	model.Build.Items = append(model.Build.Items, &go3mf.Item{ObjectID: 1})

	if err := go3mf.NewEncoder(w).Encode(model); err != nil {
		return fmt.Errorf("meshio: encode 3mf: %w", err)
	}
	return nil
}

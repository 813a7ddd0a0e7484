// Package graph builds face adjacency graphs over triangle meshes and
// propagates weights across them. A FaceGraph belongs to the mesh it was
// built from; it is rebuilt per mesh and never shared between meshes.
package graph

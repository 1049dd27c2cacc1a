package bin

import (
	"fmt"
	"time"

	"github.com/hschendel/stl"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/spatial/r3"
)

// Export lists the files an assembly was written to. ThreeMFPath is empty
// when no multi-object file was produced.
type Export struct {
	STLPath     string
	ThreeMFPath string
	Triangles   int
}

// ExportAssembly writes the assembly as one STL mesh. When it has an
// embossed text body, the STL holds both bodies and a 3MF file keeping them
// as separate objects is attempted at threeMFPath; a 3MF failure is logged
// and does not fail the export.
func ExportAssembly(asm *Assembly, stlPath, threeMFPath string) (*Export, error) {
	logger := log.With().Str("component", "export").Logger()
	start := time.Now()

	body, err := asm.engine.Mesh(asm.Body)
	if err != nil {
		return nil, fmt.Errorf("mesh body: %w", err)
	}
	var text []r3.Triangle
	if asm.HasText() {
		if text, err = asm.engine.Mesh(asm.Text); err != nil {
			return nil, fmt.Errorf("mesh text: %w", err)
		}
	}

	all := append(append([]r3.Triangle(nil), body...), text...)
	if err := WriteSTL(stlPath, "tracefinity bin", all); err != nil {
		return nil, err
	}
	out := &Export{STLPath: stlPath, Triangles: len(all)}
	logger.Info().Str("path", stlPath).Int("triangles", len(all)).
		Dur("elapsed", time.Since(start)).Msg("stl written")

	if len(text) > 0 && threeMFPath != "" {
		err := Write3MF(threeMFPath, []MeshObject{
			{Name: "bin", Triangles: body},
			{Name: "text", Triangles: text},
		})
		if err != nil {
			logger.Warn().Err(err).Str("path", threeMFPath).Msg("3mf export failed, skipping")
		} else {
			out.ThreeMFPath = threeMFPath
		}
	}
	return out, nil
}

// WriteSTL writes triangles as a binary STL file.
func WriteSTL(path, name string, tris []r3.Triangle) error {
	solid := &stl.Solid{Name: name, Triangles: make([]stl.Triangle, 0, len(tris))}
	for _, t := range tris {
		solid.AppendTriangle(stl.Triangle{
			Vertices: [3]stl.Vec3{vec3(t[0]), vec3(t[1]), vec3(t[2])},
		})
	}
	solid.RecalculateNormals()
	if err := solid.WriteFile(path); err != nil {
		return fmt.Errorf("write stl %s: %w", path, err)
	}
	return nil
}

func vec3(v r3.Vec) stl.Vec3 {
	return stl.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

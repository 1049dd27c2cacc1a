package bin

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	threeMFModelFile = "3D/3dmodel.model"
	threeMFCoreNS    = "http://schemas.microsoft.com/3dmanufacturing/core/2015/02"
	threeMFRelType   = "http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"
	threeMFRelsNS    = "http://schemas.openxmlformats.org/package/2006/relationships"
	threeMFTypes     = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
	<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
	<Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>
</Types>`
)

// MeshObject is one named body in a multi-object file.
type MeshObject struct {
	Name      string
	Triangles []r3.Triangle
}

type tmfModel struct {
	XMLName   xml.Name    `xml:"model"`
	Unit      string      `xml:"unit,attr"`
	Lang      string      `xml:"xml:lang,attr"`
	Schema    string      `xml:"xmlns,attr"`
	Resources []tmfObject `xml:"resources>object"`
	Build     []tmfItem   `xml:"build>item"`
}

type tmfItem struct {
	ObjectID int `xml:"objectid,attr"`
}

type tmfObject struct {
	ID        int           `xml:"id,attr"`
	Name      string        `xml:"name,attr"`
	Type      string        `xml:"type,attr"`
	Vertices  []tmfVertex   `xml:"mesh>vertices>vertex"`
	Triangles []tmfTriangle `xml:"mesh>triangles>triangle"`
}

type tmfVertex struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
	Z float64 `xml:"z,attr"`
}

type tmfTriangle struct {
	V1 int `xml:"v1,attr"`
	V2 int `xml:"v2,attr"`
	V3 int `xml:"v3,attr"`
}

type tmfRelationships struct {
	XMLName      xml.Name          `xml:"Relationships"`
	Schema       string            `xml:"xmlns,attr"`
	Relationship []tmfRelationship `xml:"Relationship"`
}

type tmfRelationship struct {
	Target string `xml:"Target,attr"`
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
}

// Write3MF writes objects as separate bodies of one 3MF package, in
// millimetres. Shared vertices are indexed once per object.
func Write3MF(path string, objects []MeshObject) (err error) {
	if len(objects) == 0 {
		return fmt.Errorf("3mf: no objects")
	}
	m := tmfModel{Unit: "millimeter", Lang: "en-US", Schema: threeMFCoreNS}
	for i, o := range objects {
		if len(o.Triangles) == 0 {
			return fmt.Errorf("3mf: object %q has no triangles", o.Name)
		}
		obj := tmfObject{ID: i + 1, Name: o.Name, Type: "model"}
		index := make(map[r3.Vec]int)
		vertex := func(v r3.Vec) int {
			if idx, ok := index[v]; ok {
				return idx
			}
			idx := len(obj.Vertices)
			index[v] = idx
			obj.Vertices = append(obj.Vertices, tmfVertex{X: v.X, Y: v.Y, Z: v.Z})
			return idx
		}
		for _, t := range o.Triangles {
			obj.Triangles = append(obj.Triangles, tmfTriangle{V1: vertex(t[0]), V2: vertex(t[1]), V3: vertex(t[2])})
		}
		m.Resources = append(m.Resources, obj)
		m.Build = append(m.Build, tmfItem{ObjectID: obj.ID})
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(f)
	if err := writeXMLEntry(zw, threeMFModelFile, m); err != nil {
		return err
	}
	rels := tmfRelationships{
		Schema: threeMFRelsNS,
		Relationship: []tmfRelationship{
			{Target: "/" + threeMFModelFile, ID: "rel0", Type: threeMFRelType},
		},
	}
	if err := writeXMLEntry(zw, "_rels/.rels", rels); err != nil {
		return err
	}
	w, err := zw.Create("[Content_Types].xml")
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(threeMFTypes)); err != nil {
		return err
	}
	return zw.Close()
}

func writeXMLEntry(zw *zip.Writer, name string, v any) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("3mf %s: %w", name, err)
	}
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "\t")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("3mf %s: %w", name, err)
	}
	return nil
}

package utils

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bsaid97/go-area-weighted-average/layer"
)

// ZipFile is an extra file placed in a bundle as is.
type ZipFile struct {
	Name string
	Data []byte
}

// GenerateShapefileZip bundles every layer twice, as <name>.geojson and as
// a <name> shapefile, followed by the extra files. Names are reduced to a
// single path element with layer.FileName.
func GenerateShapefileZip(layers []*layer.Layer, extra ...ZipFile) ([]byte, error) {
	var zipBuffer bytes.Buffer
	zipWriter := zip.NewWriter(&zipBuffer)

	for _, l := range layers {
		var geojson bytes.Buffer
		if err := layer.WriteGeoJSON(&geojson, l); err != nil {
			return nil, fmt.Errorf("failed to encode layer %s: %w", l.Name, err)
		}
		if err := addToZip(zipWriter, layer.FileName(l.Name)+".geojson", geojson.Bytes()); err != nil {
			return nil, err
		}
		if err := addShapefileToZip(zipWriter, l); err != nil {
			return nil, fmt.Errorf("failed to add shapefile to zip: %w", err)
		}
	}
	for _, f := range extra {
		if err := addToZip(zipWriter, layer.FileName(f.Name), f.Data); err != nil {
			return nil, err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}
	return zipBuffer.Bytes(), nil
}

func addToZip(zipWriter *zip.Writer, name string, data []byte) error {
	w, err := zipWriter.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s in zip: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s to zip: %w", name, err)
	}
	return nil
}

// addShapefileToZip writes l to a temporary shapefile and copies its
// components into the zip.
func addShapefileToZip(zipWriter *zip.Writer, l *layer.Layer) error {
	tempDir, err := os.MkdirTemp("", "shapefile_")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	name := layer.FileName(l.Name)
	shapefilePath := filepath.Join(tempDir, name+".shp")
	if err := layer.WriteShapefile(shapefilePath, l); err != nil {
		return err
	}

	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		filePath := strings.TrimSuffix(shapefilePath, ".shp") + ext
		fileContent, err := os.ReadFile(filePath)
		if os.IsNotExist(err) && ext == ".prj" {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read shapefile component %s: %w", ext, err)
		}
		if err := addToZip(zipWriter, name+ext, fileContent); err != nil {
			return err
		}
	}
	return nil
}

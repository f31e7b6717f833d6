package main

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/model"
)

// openOutput returns stdout for an empty path, otherwise a created file.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output %s", path)
	}
	return f, f.Close, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

// emitJSON writes v as indented JSON to path, or stdout when path is empty.
func emitJSON(path string, v any) error {
	w, closeFn, err := openOutput(path)
	if err != nil {
		return err
	}
	if err := writeJSON(w, v); err != nil {
		_ = closeFn()
		return err
	}
	return closeFn()
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return geoerr.Validationf("--format must be one of %s (got %q)", strings.Join(allowed, ", "), format)
}

// parseLatLng parses "lat,lng".
func parseLatLng(s string) (model.LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.LatLng{}, geoerr.Validationf("coordinate %q must be lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.LatLng{}, geoerr.Validationf("coordinate %q: bad latitude", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.LatLng{}, geoerr.Validationf("coordinate %q: bad longitude", s)
	}
	p := model.LatLng{Lat: lat, Lng: lng}
	if !p.Valid() {
		return model.LatLng{}, geoerr.Validationf("coordinate %q is out of range", s)
	}
	return p, nil
}

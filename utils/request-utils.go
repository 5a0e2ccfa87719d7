package utils

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MultipartResult holds the uploaded files and form values of a request.
type MultipartResult struct {
	Files map[string][]byte
	// Names holds the client file name of each upload.
	Names  map[string]string
	Values map[string][]string
}

// ReadMultiPartForm parses a multipart request of at most maxBytes and
// reads the first file of each of fileKeys. Missing files are not an error.
func ReadMultiPartForm(r *http.Request, maxBytes int64, fileKeys ...string) (MultipartResult, error) {
	result := MultipartResult{Files: map[string][]byte{}, Names: map[string]string{}, Values: map[string][]string{}}
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return result, fmt.Errorf("failed to parse multipart form: %w", err)
	}
	for key, value := range r.MultipartForm.Value {
		result.Values[key] = value
	}

	for _, key := range fileKeys {
		headers := r.MultipartForm.File[key]
		if len(headers) == 0 {
			continue
		}
		file, err := headers[0].Open()
		if err != nil {
			return result, fmt.Errorf("failed to open upload %s: %w", key, err)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return result, fmt.Errorf("failed to read upload %s: %w", key, err)
		}
		result.Files[key] = data
		result.Names[key] = headers[0].Filename
	}
	return result, nil
}

// Value returns the first value of key, trimmed.
func (m MultipartResult) Value(key string) string {
	if v := m.Values[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

// Bool reports whether key is "true" or "1".
func (m MultipartResult) Bool(key string) bool {
	switch strings.ToLower(m.Value(key)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// List returns every value of key, splitting comma separated values and
// dropping empty entries.
func (m MultipartResult) List(key string) []string {
	var out []string
	for _, v := range m.Values[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

package service

import (
	"net/url"
	"strings"

	"github.com/littlesprouts/admissions-api/internal/models"
)

// ResolveDocument normalises the uploaded-document metadata for one slot.
// The backend has stored documents in three shapes over time, checked in
// order: the current documents map, the legacy uploadedDocuments map, and
// a root-level field holding either a single object or a one-element
// array. The first shape that yields a file URL wins.
//
// A nil result means "no document uploaded", never an error.
func ResolveDocument(app models.Application, slot string) *models.DocumentRecord {
	if record := normalizeDocumentValue(app.Documents[slot]); record != nil {
		return record
	}
	if record := normalizeDocumentValue(app.UploadedDocuments[slot]); record != nil {
		return record
	}
	return normalizeDocumentValue(app.LegacyFields[slot])
}

// ResolveAllDocuments normalises every slot that has a document. Slots
// without one are absent from the result.
func ResolveAllDocuments(app models.Application) map[string]models.DocumentRecord {
	resolved := make(map[string]models.DocumentRecord)
	for _, slot := range models.DocumentSlots() {
		if record := ResolveDocument(app, slot); record != nil {
			resolved[slot] = *record
		}
	}
	return resolved
}

func normalizeDocumentValue(value interface{}) *models.DocumentRecord {
	switch v := value.(type) {
	case map[string]interface{}:
		return normalizeDocumentMap(v)
	case []interface{}:
		if len(v) == 0 {
			return nil
		}
		if entry, ok := v[0].(map[string]interface{}); ok {
			return normalizeDocumentMap(entry)
		}
		return nil
	default:
		return nil
	}
}

func normalizeDocumentMap(entry map[string]interface{}) *models.DocumentRecord {
	fileURL := stringField(entry, "fileUrl", "url")
	if fileURL == "" {
		return nil
	}

	fileName := stringField(entry, "fileName", "name")
	if fileName == "" {
		fileName = fileNameFromURL(fileURL)
	}

	return &models.DocumentRecord{
		FileName:   fileName,
		FileURL:    fileURL,
		FilePath:   stringField(entry, "filePath", "path"),
		UploadedAt: stringField(entry, "uploadedAt"),
		Size:       sizeField(entry),
	}
}

func stringField(entry map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if raw, ok := entry[key]; ok {
			if value, isString := raw.(string); isString && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}

func sizeField(entry map[string]interface{}) int64 {
	switch v := entry["size"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func fileNameFromURL(fileURL string) string {
	parsed, err := url.Parse(fileURL)
	path := fileURL
	if err == nil && parsed.Path != "" {
		path = parsed.Path
	}

	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[idx+1:]
	}

	return path
}

package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/littlesprouts/admissions-api/internal/dto"
	"github.com/littlesprouts/admissions-api/pkg/storage"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type storageStub struct {
	mu      sync.Mutex
	uploads []string
	failAll bool
}

func (s *storageStub) Upload(ctx context.Context, bucket storage.Bucket, name string, reader io.Reader, size int64) (storage.UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return storage.UploadResult{}, io.ErrUnexpectedEOF
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return storage.UploadResult{}, err
	}
	s.uploads = append(s.uploads, name)
	return storage.UploadResult{
		FileName: name,
		URL:      "https://cdn.example.com/" + string(bucket) + "/" + name,
		Path:     string(bucket) + "/" + name,
		Size:     size,
	}, nil
}

type notifierStub struct {
	submitted     []dto.ApplicationResponse
	statusChanges []string
}

func (n *notifierStub) ApplicationSubmitted(ctx context.Context, app dto.ApplicationResponse) {
	n.submitted = append(n.submitted, app)
}

func (n *notifierStub) ApplicationStatusChanged(ctx context.Context, app dto.ApplicationResponse, previousStatus string) {
	n.statusChanges = append(n.statusChanges, previousStatus+"->"+app.Status)
}

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/littlesprouts/admissions-api/internal/dto"
	"github.com/littlesprouts/admissions-api/internal/models"
	"github.com/littlesprouts/admissions-api/internal/service"
	"github.com/littlesprouts/admissions-api/pkg/storage"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type submissionServiceStub struct {
	submitResponse dto.ApplicationResponse
	submitErr      error
	submittedBy    string
	getResponse    dto.ApplicationResponse
	getErr         error
}

func (s *submissionServiceStub) Submit(_ context.Context, fields dto.ApplicationFields, files map[string][]*multipart.FileHeader, submittedBy string) (dto.ApplicationResponse, error) {
	s.submittedBy = submittedBy
	if s.submitErr != nil {
		return dto.ApplicationResponse{}, s.submitErr
	}
	return s.submitResponse, nil
}

func (s *submissionServiceStub) SubmitResolved(_ context.Context, fields dto.ApplicationFields, documents map[string][]models.DocumentRecord, submittedBy string) (dto.ApplicationResponse, error) {
	return s.Submit(context.Background(), fields, nil, submittedBy)
}

func (s *submissionServiceStub) Get(context.Context, uint) (dto.ApplicationResponse, error) {
	if s.getErr != nil {
		return dto.ApplicationResponse{}, s.getErr
	}
	return s.getResponse, nil
}

func (s *submissionServiceStub) StoreUpload(_ context.Context, _ storage.Bucket, file *multipart.FileHeader) (models.DocumentRecord, error) {
	return models.DocumentRecord{FileName: file.Filename, FileURL: "https://storage.example/" + file.Filename}, nil
}

type receiptServiceStub struct {
	err error
}

func (s *receiptServiceStub) Generate(context.Context, dto.ApplicationResponse) (service.Receipt, error) {
	if s.err != nil {
		return service.Receipt{}, s.err
	}
	return service.Receipt{FileName: "Amaya_Perera_receipt.pdf", Content: []byte("%PDF-1.4 test")}, nil
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{DisableStartupMessage: true})
}

// multipartRequest builds a request carrying form fields plus one file per
// listed slot.
func multipartRequest(t *testing.T, method, target string, fields map[string]string, fileSlots []string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for _, slot := range fileSlots {
		part, err := writer.CreateFormFile(slot, slot+".png")
		require.NoError(t, err)
		_, err = part.Write([]byte{0x89, 0x50, 0x4E, 0x47})
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(method, target, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &envelope))

	return envelope
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"github.com/littlesprouts/admissions-api/internal/dto"
	"github.com/littlesprouts/admissions-api/internal/models"
	"github.com/littlesprouts/admissions-api/internal/observability"
)

const (
	receiptTitle    = "Little Sprouts Preschool"
	receiptSubtitle = "Admission Application Receipt"

	receiptImageMaxBytes = 8 << 20
	receiptFetchTimeout  = 10 * time.Second
)

// Receipt is a rendered PDF ready to stream to the client.
type Receipt struct {
	FileName string
	Content  []byte
}

// ImageFetcher retrieves a stored document's bytes so they can be embedded
// in the receipt.
type ImageFetcher func(ctx context.Context, url string) ([]byte, error)

// ReceiptService renders admission receipts as PDF documents.
type ReceiptService interface {
	Generate(ctx context.Context, app dto.ApplicationResponse) (Receipt, error)
}

type receiptService struct {
	fetchImage ImageFetcher
	logger     zerolog.Logger
}

// NewReceiptService constructs the receipt renderer. A nil fetcher falls
// back to plain HTTP fetches with a timeout.
func NewReceiptService(fetcher ImageFetcher, logger zerolog.Logger) ReceiptService {
	if fetcher == nil {
		fetcher = httpImageFetcher(&http.Client{Timeout: receiptFetchTimeout})
	}
	return &receiptService{
		fetchImage: fetcher,
		logger:     logger.With().Str("component", "receipt_service").Logger(),
	}
}

func httpImageFetcher(client *http.Client) ImageFetcher {
	return func(ctx context.Context, url string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d fetching receipt image", resp.StatusCode)
		}
		return io.ReadAll(io.LimitReader(resp.Body, receiptImageMaxBytes))
	}
}

// Generate renders the full receipt: header, status, applicant details,
// the document checklist and, when available, the uploaded payment
// receipt image.
func (s *receiptService) Generate(ctx context.Context, app dto.ApplicationResponse) (Receipt, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(receiptSubtitle, true)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AddPage()

	s.renderHeader(pdf, app)
	s.renderSection(pdf, "Child Information", [][2]string{
		{"Full Name", app.ChildFullName},
		{"Date of Birth", app.DateOfBirth},
		{"Gender", app.Gender},
		{"Nationality", app.Nationality},
		{"Home Address", app.HomeAddress},
		{"Home Language", app.HomeLanguage},
	})
	s.renderSection(pdf, "Parent / Guardian", [][2]string{
		{"Name", app.Parent1Name},
		{"National ID", app.Parent1NationalID},
		{"Mobile", app.Parent1Mobile},
		{"Email", app.Parent1Email},
		{"Second Guardian", app.Parent2Name},
		{"Second Guardian Mobile", app.Parent2Mobile},
	})
	s.renderSection(pdf, "Program", [][2]string{
		{"Program Type", programLabel(app.ProgramType)},
		{"Schedule", scheduleLabel(app.Schedule)},
	})
	s.renderSection(pdf, "Medical & Emergency", [][2]string{
		{"Immunized", yesNo(app.Immunized)},
		{"Medical Conditions", app.MedicalConditions},
		{"Emergency Contact 1", joinNonEmpty(app.Emergency1Name, app.Emergency1Phone)},
		{"Emergency Contact 2", joinNonEmpty(app.Emergency2Name, app.Emergency2Phone)},
		{"Authorized Pickup", app.AuthorizedPickup},
	})
	s.renderDocumentChecklist(pdf, app)
	s.renderPaymentImage(ctx, pdf, app)
	s.renderFooter(pdf, app)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Receipt{}, fmt.Errorf("failed to render receipt: %w", err)
	}

	observability.ReceiptsGenerated().Inc()
	s.logger.Info().Uint("application_id", app.ID).Int("bytes", buf.Len()).Msg("receipt generated")

	return Receipt{
		FileName: ReceiptFileName(app.ChildFullName, time.Now().UTC()),
		Content:  buf.Bytes(),
	}, nil
}

func (s *receiptService) renderHeader(pdf *fpdf.Fpdf, app dto.ApplicationResponse) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(34, 87, 52)
	pdf.CellFormat(0, 10, receiptTitle, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 7, receiptSubtitle, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	reference := fmt.Sprintf("Application #%d  |  Status: %s  |  Submitted: %s",
		app.ID, strings.ToUpper(app.Status), app.CreatedAt.Format("2 Jan 2006"))
	pdf.CellFormat(0, 6, reference, "", 1, "C", false, 0, "")

	pdf.SetDrawColor(34, 87, 52)
	pdf.Line(15, pdf.GetY()+2, 195, pdf.GetY()+2)
	pdf.Ln(6)
}

func (s *receiptService) renderSection(pdf *fpdf.Fpdf, title string, rows [][2]string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(34, 87, 52)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		value := strings.TrimSpace(row[1])
		if value == "" {
			value = "-"
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(55, 6, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, value, "", "L", false)
	}
	pdf.Ln(3)
}

func (s *receiptService) renderDocumentChecklist(pdf *fpdf.Fpdf, app dto.ApplicationResponse) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(34, 87, 52)
	pdf.CellFormat(0, 8, "Submitted Documents", "", 1, "L", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	for _, slot := range models.DocumentSlots() {
		label := slotLabels[slot]
		status := "Not submitted"
		if record, ok := app.Documents[slot]; ok && record.FileURL != "" {
			status = "Submitted"
			if record.FileName != "" {
				status = "Submitted (" + record.FileName + ")"
			}
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(55, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, status, "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}

// renderPaymentImage embeds the uploaded payment receipt when it is a
// usable PNG or JPEG. Anything else gets a placeholder box so the section
// always appears.
func (s *receiptService) renderPaymentImage(ctx context.Context, pdf *fpdf.Fpdf, app dto.ApplicationResponse) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(34, 87, 52)
	pdf.CellFormat(0, 8, "Payment Receipt", "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	record, ok := app.Documents[models.SlotPaymentReceipt]
	if !ok || record.FileURL == "" {
		s.renderImagePlaceholder(pdf, "No payment receipt uploaded")
		return
	}

	data, err := s.fetchImage(ctx, record.FileURL)
	if err != nil {
		s.logger.Warn().Err(err).Uint("application_id", app.ID).Msg("payment receipt image unavailable")
		s.renderImagePlaceholder(pdf, "Payment receipt on file: "+record.FileName)
		return
	}

	imageType := detectEmbeddableImage(data)
	if imageType == "" {
		s.renderImagePlaceholder(pdf, "Payment receipt on file: "+record.FileName)
		return
	}

	name := fmt.Sprintf("payment-receipt-%d", app.ID)
	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
	pdf.ImageOptions(name, 15, pdf.GetY(), 80, 0, true, fpdf.ImageOptions{ImageType: imageType}, 0, "")
	pdf.Ln(3)
}

func (s *receiptService) renderImagePlaceholder(pdf *fpdf.Fpdf, caption string) {
	y := pdf.GetY()
	pdf.SetDrawColor(170, 170, 170)
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(15, y, 80, 30, "FD")
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(15, y+12)
	pdf.CellFormat(80, 6, caption, "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetY(y + 34)
}

func (s *receiptService) renderFooter(pdf *fpdf.Fpdf, app dto.ApplicationResponse) {
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.MultiCell(0, 5,
		"Thank you for applying to Little Sprouts Preschool. Our admissions team will review the application "+
			"and contact "+firstNonEmpty(app.Parent1Name, "the guardian")+" within five working days.",
		"", "C", false)
	pdf.CellFormat(0, 5, "Generated "+time.Now().UTC().Format("2 Jan 2006 15:04 MST"), "", 1, "C", false, 0, "")
}

// detectEmbeddableImage returns the fpdf image type for data that is both
// a supported MIME type and actually decodable, or empty when it is not.
func detectEmbeddableImage(data []byte) string {
	var imageType string
	switch mimetype.Detect(data).String() {
	case "image/png":
		imageType = "PNG"
	case "image/jpeg":
		imageType = "JPG"
	default:
		return ""
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return ""
	}
	return imageType
}

// ReceiptFileName derives the download name from the child's name with
// whitespace collapsed, plus a timestamp so repeated downloads never clash.
func ReceiptFileName(childName string, now time.Time) string {
	collapsed := strings.Join(strings.Fields(childName), "_")
	if collapsed == "" {
		collapsed = "admission"
	}
	return fmt.Sprintf("%s_receipt_%s.pdf", collapsed, now.Format("20060102_150405"))
}

func programLabel(programType string) string {
	switch programType {
	case models.ProgramToddler:
		return "Toddler Program (18 months - 3 years)"
	case models.ProgramCasa:
		return "Casa Program (3 - 6 years)"
	default:
		return programType
	}
}

func scheduleLabel(schedule string) string {
	switch schedule {
	case models.ScheduleHalfDay:
		return "Half Day"
	case models.ScheduleFullDay:
		return "Full Day"
	default:
		return schedule
	}
}

func yesNo(value bool) string {
	if value {
		return "Yes"
	}
	return "No"
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			kept = append(kept, strings.TrimSpace(part))
		}
	}
	return strings.Join(kept, " / ")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

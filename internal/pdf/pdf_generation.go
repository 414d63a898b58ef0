package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Generator renders the approval protocol attached to a fully signed
// document. Interface so services can stub it in tests.
type Generator interface {
	GenerateApprovalProtocol(data ProtocolData) (string, error)
}

type ProtocolData struct {
	DocumentID   int64
	DocumentName string
	TaskTitle    string
	CompanyName  string
	Deadline     time.Time
	FinishedAt   time.Time
	Signatures   []ProtocolSignature
	Filename     string // basename only; generated if empty
}

type ProtocolSignature struct {
	SignerName string
	Sequence   int
	SignedAt   time.Time
}

type ProtocolGenerator struct {
	RootDir  string
	FontPath string
	fontName string
}

func NewProtocolGenerator(rootDir, fontPath string) *ProtocolGenerator {
	return &ProtocolGenerator{
		RootDir:  filepath.Clean(rootDir),
		FontPath: fontPath,
		fontName: "DejaVu",
	}
}

func (g *ProtocolGenerator) GenerateApprovalProtocol(data ProtocolData) (string, error) {
	filename := data.Filename
	if filename == "" {
		filename = fmt.Sprintf("approval_protocol_doc_%d.pdf", data.DocumentID)
	}
	absPath, err := g.ensureTarget(filename)
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Approval protocol #%d", data.DocumentID), false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	g.addUTF8Font(pdf)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "APPROVAL PROTOCOL", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 12)
	sub := fmt.Sprintf("Document #%d, approved on %s",
		data.DocumentID, data.FinishedAt.Format("02/01/2006"))
	pdf.CellFormat(0, 7, sub, "", 1, "C", false, 0, "")
	g.hr(pdf)

	pdf.Ln(3)

	g.sectionTitle(pdf, "Obligation")
	g.kvLine(pdf, "Task", data.TaskTitle)
	g.kvLine(pdf, "Company", data.CompanyName)
	g.kvLine(pdf, "Document", data.DocumentName)
	g.kvLine(pdf, "Deadline", data.Deadline.Format("02/01/2006"))
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Signatures")
	pdf.SetFont(g.fontName, "", 11)
	for _, s := range data.Signatures {
		line := fmt.Sprintf("%d. %s, signed %s",
			s.Sequence, s.SignerName, s.SignedAt.Format("02/01/2006 15:04"))
		pdf.MultiCell(0, 6, line, "", "L", false)
	}
	pdf.Ln(2)
	g.hr(pdf)

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 10)
		pdf.CellFormat(0, 10,
			fmt.Sprintf("Page %d/{nb}", pdf.PageNo()),
			"", 0, "C", false, 0, "",
		)
	})

	if err := pdf.OutputFileAndClose(absPath); err != nil {
		return "", err
	}
	return "/" + filepath.ToSlash(filepath.Base(absPath)), nil
}

func (g *ProtocolGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *ProtocolGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *ProtocolGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

func (g *ProtocolGenerator) ensureTarget(filename string) (string, error) {
	if err := os.MkdirAll(g.RootDir, 0o755); err != nil {
		return "", fmt.Errorf("create files dir: %w", err)
	}
	filename = filepath.Base(filename)
	return filepath.Join(g.RootDir, filename), nil
}

func (g *ProtocolGenerator) addUTF8Font(pdf *gofpdf.Fpdf) {
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}

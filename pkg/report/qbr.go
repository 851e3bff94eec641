// Package report renders QBR-ready documents from orchestration snapshots.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/growthdesk/growthdesk-go/pkg/models"
)

// QBRGenerator renders a GAP snapshot as a PDF report.
type QBRGenerator struct {
	outputDir string
}

// NewQBRGenerator creates a generator writing into outputDir.
func NewQBRGenerator(outputDir string) *QBRGenerator {
	return &QBRGenerator{outputDir: outputDir}
}

// Generate writes the snapshot report and returns the file path.
func (g *QBRGenerator) Generate(company *models.Company, snapshot *models.GAPSnapshot) (string, error) {
	if snapshot == nil {
		return "", fmt.Errorf("snapshot is required")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Growth Assessment Review: %s", company.Name))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run date: %s", snapshot.Timestamp.Format("2006-01-02 15:04")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Labs run: %s", strings.Join(snapshot.LabsRun, ", ")))
	pdf.Ln(10)

	if snapshot.GapFindings != nil {
		g.writeFindings(pdf, snapshot.GapFindings)
	}
	g.writeChanges(pdf, snapshot.Changes)
	if len(snapshot.Insights) > 0 {
		g.writeInsights(pdf, snapshot.Insights)
	}

	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	filePath := filepath.Join(g.outputDir,
		fmt.Sprintf("qbr_%s_%s.pdf", company.ID, snapshot.Timestamp.Format("20060102_150405")))
	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return filePath, nil
}

func (g *QBRGenerator) writeFindings(pdf *gofpdf.Fpdf, findings *models.GAPStructuredOutput) {
	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Overall: %d/100 (%s)", findings.OverallScore, findings.MaturityStage))
	pdf.Ln(10)

	dimensions := make([]string, 0, len(findings.Scores))
	for dimension := range findings.Scores {
		dimensions = append(dimensions, dimension)
	}
	sort.Strings(dimensions)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(100, 8, "Dimension", "1", 0, "L", true, 0, "")
	pdf.CellFormat(70, 8, "Score", "1", 0, "C", true, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for i, dimension := range dimensions {
		if i%2 == 1 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.CellFormat(100, 7, dimension, "1", 0, "L", true, 0, "")
		pdf.CellFormat(70, 7, fmt.Sprintf("%d", findings.Scores[dimension]), "1", 0, "C", true, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	if len(findings.KeyFindings) > 0 {
		g.writeList(pdf, "Key Findings", findings.KeyFindings)
	}
	if len(findings.NextSteps) > 0 {
		g.writeList(pdf, "Next Steps", findings.NextSteps)
	}
}

func (g *QBRGenerator) writeChanges(pdf *gofpdf.Fpdf, changes models.SnapshotChanges) {
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Context Changes This Run")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Fields added: %d, fields updated: %d, insights created: %d, score change: %+d",
		changes.FieldsAdded, changes.FieldsUpdated, changes.InsightsCreated, changes.ScoreChange))
	pdf.Ln(10)
}

func (g *QBRGenerator) writeInsights(pdf *gofpdf.Fpdf, items []models.ClientInsight) {
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Insights")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		line := fmt.Sprintf("[%s/%s] %s", item.Category, item.Severity, item.Title)
		pdf.MultiCell(0, 5, line, "", "L", false)
		pdf.Ln(1)
	}
	pdf.Ln(4)
}

func (g *QBRGenerator) writeList(pdf *gofpdf.Fpdf, title string, items []string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	for _, item := range items {
		pdf.MultiCell(0, 5, "- "+item, "", "L", false)
		pdf.Ln(1)
	}
	pdf.Ln(4)
}

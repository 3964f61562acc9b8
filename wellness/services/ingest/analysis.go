package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wellness/wellness/services/llm"
	"wellness/wellness/services/sidecar"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/jsonutils"
	"wellness/wellness/utils/logging"
	"wellness/wellness/utils/textextract"

	"go.uber.org/zap"
)

const (
	analysisReadLimit = 100_000
	analysisMaxChars  = 15_000

	ConfidenceParsed   = 0.85
	ConfidenceUnparsed = 0.50
)

// DocumentTypes are the upload categories, each with its own extraction prompt.
var DocumentTypes = []string{"wellness_plan", "fitness_assessment", "health_record", "nutrition_plan", "other"}

func IsDocumentType(t string) bool {
	for _, known := range DocumentTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Extraction is the content of the extracted sidecar.
type Extraction struct {
	DocumentType    string         `json:"documentType"`
	ExtractedAt     time.Time      `json:"extractedAt"`
	ExtractionModel string         `json:"extractionModel"`
	IngestionJobID  string         `json:"ingestionJobId,omitempty"`
	Confidence      float64        `json:"confidence"`
	Data            map[string]any `json:"data"`
}

// Analyze asks the fast model for structured data about the document and
// stores it in the extracted sidecar.
func (p *Pipeline) Analyze(ctx context.Context, key, jobID string) (*Extraction, error) {
	defer logging.LogDuration(ctx, "document_analysis")()

	info, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	docType := info.DocumentType
	if !IsDocumentType(docType) {
		docType = "other"
	}
	p.note(ctx, key, "", "ai_analysis_started", "Starting AI extraction")

	ex, err := p.extract(ctx, key, docType)
	if err != nil {
		p.note(ctx, key, "", models.DocStatusError, "AI analysis failed: "+err.Error())
		return nil, err
	}
	ex.IngestionJobID = jobID

	var body map[string]any
	raw, _ := json.Marshal(ex)
	_ = json.Unmarshal(raw, &body)
	if _, err := p.sidecars.Write(ctx, key, sidecar.Extracted, body); err != nil {
		return nil, err
	}

	p.note(ctx, key, "", models.DocStatusAIAnalysisComplete, fmt.Sprintf("Extraction successful, confidence: %.2f", ex.Confidence))
	err = p.sidecars.AppendAuditEvent(ctx, key, "ai_extraction_complete", "system", map[string]any{
		"confidence":   ex.Confidence,
		"documentType": docType,
	})
	if err != nil {
		logging.AppLogger.Warn("audit sidecar not updated", zap.String("key", key), zap.Error(err))
	}

	// Only a ready document is promoted, an in-flight one keeps its pipeline status.
	if _, err := p.docs.TransitionStatus(ctx, info.DocumentID, models.DocStatusAIAnalysisComplete, models.DocStatusIngestionComplete); err != nil {
		logging.ErrorLogger.Error("document status not updated", zap.String("document_id", info.DocumentID), zap.Error(err))
	}

	logging.AppLogger.Info("document analysis complete",
		zap.String("key", key), zap.String("document_type", docType), zap.Float64("confidence", ex.Confidence))
	return ex, nil
}

func (p *Pipeline) extract(ctx context.Context, key, docType string) (*Extraction, error) {
	data, err := p.store.Get(ctx, key, analysisReadLimit)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("document is empty")
	}
	text := textextract.Truncate(textextract.FromBytes(key, data), analysisMaxChars)

	prompt := p.prompts.Extraction(docType) + "\n\nDocument text:\n" + text + "\n\nExtract the information and return JSON only."
	temperature := 0.2
	out, err := p.llm.Run(ctx, llm.ChatRequest{
		Model:       p.model,
		Messages:    []llm.Message{llm.User(prompt)},
		MaxTokens:   4096,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction model: %w", err)
	}

	ex := &Extraction{
		DocumentType:    docType,
		ExtractedAt:     p.now().UTC(),
		ExtractionModel: p.model,
		Confidence:      ConfidenceParsed,
	}
	if err := jsonutils.Decode(out, &ex.Data); err != nil || ex.Data == nil {
		ex.Confidence = ConfidenceUnparsed
		ex.Data = map[string]any{"raw_response": out, "error": "Invalid JSON"}
	}
	return ex, nil
}

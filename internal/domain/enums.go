package domain

// DocumentType classifies the kind of legal document submitted for translation.
type DocumentType string

const (
	DocTypeContract        DocumentType = "contract"
	DocTypeAgreement       DocumentType = "agreement"
	DocTypeCourtDecision   DocumentType = "court_decision"
	DocTypePowerOfAttorney DocumentType = "power_of_attorney"
	DocTypeOther           DocumentType = "other"
)

// ValidDocumentTypes lists the document types accepted on submission.
var ValidDocumentTypes = map[DocumentType]bool{
	DocTypeContract:        true,
	DocTypeAgreement:       true,
	DocTypeCourtDecision:   true,
	DocTypePowerOfAttorney: true,
	DocTypeOther:           true,
}

// TranslationStatus represents the processing lifecycle of a document.
type TranslationStatus string

const (
	StatusQueued     TranslationStatus = "queued"
	StatusProcessing TranslationStatus = "processing"
	StatusCompleted  TranslationStatus = "completed"
	StatusFailed     TranslationStatus = "failed"
)

// RiskType classifies a finding the model attached to a section.
type RiskType string

const (
	RiskTypeRisk          RiskType = "risk"
	RiskTypeWarning       RiskType = "warning"
	RiskTypeContradiction RiskType = "contradiction"
)

// RequestType tags an LLM request with the task it performs.
type RequestType string

const (
	RequestTypeTranslation RequestType = "translation"
	RequestTypeSummary     RequestType = "summary"
	RequestTypeValidation  RequestType = "validation"
)

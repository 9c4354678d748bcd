package domain

import "errors"

var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrDocumentNotProcessed = errors.New("document has not been processed yet")
	ErrEmptyContent         = errors.New("document content is empty")
	ErrUnsupportedDocType   = errors.New("unsupported document type")
	ErrUnknownPromptSystem  = errors.New("unknown prompt system")
	ErrMissingVariable      = errors.New("missing required template variable")
	ErrUnsupportedModel     = errors.New("unsupported model")
	ErrInvalidExportFormat  = errors.New("invalid export format")
	ErrInvalidParseInput    = errors.New("response content is empty")
)

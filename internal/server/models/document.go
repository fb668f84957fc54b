package models

import "time"

// DocumentCategory says which requirement an uploaded file satisfies.
type DocumentCategory string

const (
	DocCommercialRegister DocumentCategory = "crn_document"
	DocTaxCard            DocumentCategory = "tax_document"
	DocNationalID         DocumentCategory = "id_document"
	DocOther              DocumentCategory = "other"
)

// RequiredDocuments must each have at least one file before submission.
var RequiredDocuments = []DocumentCategory{DocCommercialRegister, DocTaxCard, DocNationalID}

// Valid reports whether c is a known category.
func (c DocumentCategory) Valid() bool {
	switch c {
	case DocCommercialRegister, DocTaxCard, DocNationalID, DocOther:
		return true
	}
	return false
}

// MissingDocuments returns the required categories no document covers, in
// RequiredDocuments order.
func MissingDocuments(docs []*Document) []DocumentCategory {
	have := make(map[DocumentCategory]bool, len(docs))
	for _, d := range docs {
		have[d.Category] = true
	}
	var missing []DocumentCategory
	for _, c := range RequiredDocuments {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// Document describes a file uploaded for an application. The bytes live in
// object storage under FileKey; the row is immutable once created.
type Document struct {
	ID            int64
	FileKey       string
	ApplicationID int64
	Category      DocumentCategory
	FileName      string
	MimeType      string
	SizeBytes     int64
	CreatedAt     time.Time
}

// DocumentWithOwner is a document joined with the fields of its owning
// application that access decisions need.
type DocumentWithOwner struct {
	Document
	ApplicantID       string
	ApplicationStatus ApplicationStatus
}

package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Field keys used by the extraction service. The prompts ask for these exact
// keys, so a response using different spellings leaves the fields empty.
const (
	FieldOrderNumber   = "订单编号"
	FieldAddress       = "地址"
	FieldSubject       = "科目"
	FieldSchedule      = "时间"
	FieldRequirements  = "要求"
	FieldPrice         = "价格"
	FieldTeacherGender = "教员性别"
	FieldStudentInfo   = "学员信息"

	// FieldOriginalText is the export column holding the raw order text.
	FieldOriginalText = "原始订单"
)

// StructuredFields lists the enrichable field keys in export column order.
var StructuredFields = []string{
	FieldAddress,
	FieldSubject,
	FieldSchedule,
	FieldRequirements,
	FieldPrice,
	FieldTeacherGender,
	FieldStudentInfo,
}

// Fields maps a field key to its extracted value.
type Fields map[string]string

// OrderRecord is one ingested tutoring order.
// Structured fields start empty and are filled in by enrichment.
type OrderRecord struct {
	ID            int64
	BatchID       string
	OriginalText  string // Raw order text; never mutated after insert
	ContentHash   string // BLAKE2b of OriginalText, used to group duplicates
	OrderNumber   string
	Address       string
	Subject       string
	Schedule      string
	Requirements  string
	Price         string
	TeacherGender string
	StudentInfo   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOrderRecord creates an unparsed record for the given batch.
func NewOrderRecord(batchID, originalText string, createdAt time.Time) *OrderRecord {
	return &OrderRecord{
		BatchID:      batchID,
		OriginalText: originalText,
		ContentHash:  ContentHash(originalText),
		CreatedAt:    createdAt,
	}
}

// IsParsed reports whether the record has been enriched.
// A record with an empty address is a candidate for enrichment.
func (r *OrderRecord) IsParsed() bool {
	return r.Address != ""
}

// ApplyFields copies known field keys into the record.
// Unknown keys are ignored and missing keys leave the field untouched.
func (r *OrderRecord) ApplyFields(fields Fields) {
	for key, value := range fields {
		switch key {
		case FieldOrderNumber:
			r.OrderNumber = value
		case FieldAddress:
			r.Address = value
		case FieldSubject:
			r.Subject = value
		case FieldSchedule:
			r.Schedule = value
		case FieldRequirements:
			r.Requirements = value
		case FieldPrice:
			r.Price = value
		case FieldTeacherGender:
			r.TeacherGender = value
		case FieldStudentInfo:
			r.StudentInfo = value
		}
	}
}

// ExportRow flattens the record into export column order:
// the structured fields followed by the original text.
func (r *OrderRecord) ExportRow() []string {
	return []string{
		r.Address,
		r.Subject,
		r.Schedule,
		r.Requirements,
		r.Price,
		r.TeacherGender,
		r.StudentInfo,
		r.OriginalText,
	}
}

// ExportColumns returns the header matching ExportRow.
func ExportColumns() []string {
	cols := make([]string, 0, len(StructuredFields)+1)
	cols = append(cols, StructuredFields...)
	return append(cols, FieldOriginalText)
}

// ContentHash returns a hex encoded 128-bit BLAKE2b digest of text.
// Identical text always produces the same hash.
func ContentHash(text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// BatchCount summarizes the records created by one ingestion run.
type BatchCount struct {
	BatchID   string
	Count     int
	CreatedAt time.Time // Creation time of the earliest record in the batch
}

// DuplicateGroup describes records sharing the same original text.
type DuplicateGroup struct {
	OriginalText string
	SurvivorID   int64 // Highest ID in the group; the record that is kept
	Count        int
}

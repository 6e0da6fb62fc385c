package validation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ReportValidity is how long an issued lab report stays valid.
const ReportValidity = 365 * 24 * time.Hour

// FormatReportNumber renders LAB-<year>-<seq>.
func FormatReportNumber(issuedAt time.Time, seq int) string {
	return fmt.Sprintf("LAB-%d-%04d", issuedAt.Year(), seq)
}

// ReportHash is an integrity tag over (report number, validation id, issued_at).
// It is not a signature: anyone holding the three inputs can recompute it.
func ReportHash(reportNumber, validationID string, issuedAt time.Time) string {
	sum := sha256.Sum256([]byte(reportNumber + validationID + issuedAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])
}

func ReportExpiry(issuedAt time.Time) time.Time {
	return issuedAt.Add(ReportValidity)
}

// VerifyReportHash recomputes the tag from the stored fields.
func VerifyReportHash(report LabReport) bool {
	return report.Hash != "" && report.Hash == ReportHash(report.ReportNumber, report.ValidationID, report.IssuedAt)
}

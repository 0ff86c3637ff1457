package services

import (
	"strings"

	"github.com/bldr-labs/bldr/internal/core/domain"
)

// typeMarkers maps document types to the markers that identify them.
// Checked against the title first, then the leading content. Normative
// codes win over estimate codes because norm documents routinely quote
// rate schedules in passing.
var typeMarkers = []struct {
	docType domain.DocumentType
	markers []string
}{
	{domain.DocTypeNormative, []string{
		"сп ", "снип ", "гост ", "свод правил", "санпин",
	}},
	{domain.DocTypeEstimate, []string{
		"гэсн", "фер ", "тер ", "смета", "сметный расчет", "сметный расчёт", "расценк",
	}},
	{domain.DocTypeSchedule, []string{
		"график производства", "календарный график", "календарный план", "график работ",
	}},
	{domain.DocTypeContract, []string{
		"договор", "контракт", "соглашение",
	}},
}

// DetectDocumentType classifies a document from its title and leading
// content. Unrecognised documents are generic and take the plain
// window chunker.
func DetectDocumentType(title, content string) domain.DocumentType {
	title = strings.ToLower(title)
	head := strings.ToLower(firstN(content, 2000))

	for _, tm := range typeMarkers {
		for _, m := range tm.markers {
			if strings.Contains(title, m) {
				return tm.docType
			}
		}
	}
	for _, tm := range typeMarkers {
		for _, m := range tm.markers {
			if strings.Contains(head, m) {
				return tm.docType
			}
		}
	}
	return domain.DocTypeGeneric
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary.
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

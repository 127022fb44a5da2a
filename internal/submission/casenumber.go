package submission

import "fmt"

const (
	caseNumberPrefix = "STORM-"
	caseNumberOffset = 1000
)

// CaseNumber derives the human readable case number from a submission id.
// The number is padded to five digits and widens past 99999.
func CaseNumber(id int64) string {
	return fmt.Sprintf("%s%05d", caseNumberPrefix, id+caseNumberOffset)
}

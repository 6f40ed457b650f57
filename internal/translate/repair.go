package translate

import (
	"errors"
	"regexp"
	"strings"
)

// ErrUnparseable marks a model response that could not be parsed even after
// the documented repair rules were applied.
var ErrUnparseable = errors.New("unparseable model response")

var (
	missingCommaAfterString = regexp.MustCompile(`"(\s*[\n\r]\s*)"`)
	missingCommaAfterValue  = regexp.MustCompile(`([0-9]|true|false|null)(\s*[\n\r]\s*)"`)
	missingCommaBetweenObjs = regexp.MustCompile(`}(\s*){`)
	trailingComma           = regexp.MustCompile(`,(\s*[}\]])`)
)

// RepairJSON patches the JSON defects models most often produce: missing
// commas between fields and objects, and trailing commas before a closing
// bracket. The result is not guaranteed to parse; callers should still
// handle decode failure.
func RepairJSON(payload string) string {
	repaired := strings.TrimSpace(payload)
	repaired = missingCommaAfterString.ReplaceAllString(repaired, `",${1}"`)
	repaired = missingCommaAfterValue.ReplaceAllString(repaired, `${1},${2}"`)
	repaired = missingCommaBetweenObjs.ReplaceAllString(repaired, `},${1}{`)
	repaired = trailingComma.ReplaceAllString(repaired, `${1}`)
	return repaired
}

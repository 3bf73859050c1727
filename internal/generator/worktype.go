package generator

import (
	"fmt"
	"strings"

	"infomap/internal/normalizer"
)

// Target column and constant names for the work-type classification rule.
const (
	ColumnWorkType  = "作业"
	ColumnJoinDate  = "入职日期"
	ColumnLeaveDate = "离职日期"

	WorkTypeJoin  = "入职"
	WorkTypeLeave = "离职"
)

// Sheet-name cues. A both-directions marker means the sheet mixes joins and
// leaves, so the name alone cannot decide the constant.
var (
	bothDirectionCues = []string{"增减", "异动"}
	leaveCues         = []string{"离职", "减员", "减少"}
	joinCues          = []string{"入职", "增员", "增加"}
)

func containsAny(s string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}

// WorkTypeExpression derives the SQL expression for the 作业 column.
//
// The sheet name wins when it carries an unambiguous direction cue. Otherwise
// the decision falls to which of the join/leave date columns resolved to a
// real input column: exactly one resolved forces the corresponding constant,
// both resolved yields a per-row conditional preferring 离职, and neither
// yields the empty string.
func WorkTypeExpression(sheetName string, match *normalizer.Result) string {
	if !containsAny(sheetName, bothDirectionCues) {
		if containsAny(sheetName, leaveCues) {
			return fmt.Sprintf("'%s'", WorkTypeLeave)
		}
		if containsAny(sheetName, joinCues) {
			return fmt.Sprintf("'%s'", WorkTypeJoin)
		}
	}

	joinCol := resolvedInput(match, ColumnJoinDate)
	leaveCol := resolvedInput(match, ColumnLeaveDate)
	switch {
	case joinCol != "" && leaveCol != "":
		return fmt.Sprintf(
			"CASE WHEN %s IS NOT NULL AND %s <> '' THEN '%s' WHEN %s IS NOT NULL AND %s <> '' THEN '%s' ELSE '' END",
			quoteIdent(leaveCol), quoteIdent(leaveCol), WorkTypeLeave,
			quoteIdent(joinCol), quoteIdent(joinCol), WorkTypeJoin)
	case leaveCol != "":
		return fmt.Sprintf("'%s'", WorkTypeLeave)
	case joinCol != "":
		return fmt.Sprintf("'%s'", WorkTypeJoin)
	default:
		return "''"
	}
}

// resolvedInput returns the input column assigned to a target, or "".
func resolvedInput(match *normalizer.Result, target string) string {
	if match == nil {
		return ""
	}
	if c := match.Candidate(target); c != nil {
		return c.Input
	}
	return ""
}

// quoteIdent double-quotes a column identifier for use in SQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

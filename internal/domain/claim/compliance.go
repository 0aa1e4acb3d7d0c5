package claim

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain/pacode"
)

type AlertSeverity string

const (
	AlertCritical AlertSeverity = "CRITICAL"
	AlertWarning  AlertSeverity = "WARNING"
)

type AlertCode string

const (
	AlertDoubleBundle          AlertCode = "DOUBLE_BUNDLE"
	AlertUnauthorizedFFSTopUp  AlertCode = "UNAUTHORIZED_FFS_TOP_UP"
	AlertMissingComplicationPA AlertCode = "MISSING_COMPLICATION_PA"
	AlertComplicationFFSReview AlertCode = "COMPLICATION_FFS_REVIEW"
)

type AlertAction string

const (
	ActionRejectClaimAlert AlertAction = "REJECT_CLAIM"
	ActionRejectFFSLines   AlertAction = "REJECT_FFS_LINES"
	ActionResolveAlert     AlertAction = "RESOLVE_ALERT"
)

// ComplianceAlert is advisory output, re-derivable from current line state.
// Alerts are never persisted and never mutate the claim; the workflow must
// act on them explicitly.
type ComplianceAlert struct {
	Severity AlertSeverity `json:"severity"`
	Code     AlertCode     `json:"code"`
	Message  string        `json:"message"`
	Action   AlertAction   `json:"action"`
}

// RunChecks executes the fixed, ordered compliance battery over the
// claim's lines. paTypes carries the current type of every PA referenced
// by a line, looked up fresh from the PA rows.
//
// Ordering is load-bearing: a DOUBLE_BUNDLE finding short-circuits the
// battery so the claim is rejected on that single alert.
func RunChecks(c *Claim, paTypes map[uuid.UUID]pacode.PAType) []ComplianceAlert {
	var bundleLines []*ClaimLine
	for i := range c.Lines {
		if c.Lines[i].TariffType == TariffBundle {
			bundleLines = append(bundleLines, &c.Lines[i])
		}
	}

	if len(bundleLines) > 1 {
		return []ComplianceAlert{{
			Severity: AlertCritical,
			Code:     AlertDoubleBundle,
			Message:  fmt.Sprintf("claim carries %d bundle lines; only one bundle is billable per episode", len(bundleLines)),
			Action:   ActionRejectClaimAlert,
		}}
	}

	ffsLines := c.FFSLines()
	if len(bundleLines) == 1 && len(ffsLines) > 0 {
		bundlePA := bundleLines[0].PACodeID

		for _, l := range ffsLines {
			if l.PACodeID != nil && bundlePA != nil && *l.PACodeID == *bundlePA {
				return []ComplianceAlert{{
					Severity: AlertCritical,
					Code:     AlertUnauthorizedFFSTopUp,
					Message:  "FFS line reuses the bundle line's PA code; top-ups require their own FFS_TOP_UP authorization",
					Action:   ActionRejectFFSLines,
				}}
			}
		}

		for _, l := range ffsLines {
			if l.PACodeID == nil || paTypes[*l.PACodeID] != pacode.TypeFFSTopUp {
				return []ComplianceAlert{{
					Severity: AlertCritical,
					Code:     AlertMissingComplicationPA,
					Message:  "FFS line on a bundled claim lacks an FFS_TOP_UP pre-authorization",
					Action:   ActionRejectFFSLines,
				}}
			}
		}

		return []ComplianceAlert{{
			Severity: AlertWarning,
			Code:     AlertComplicationFFSReview,
			Message:  fmt.Sprintf("%d complication top-up line(s) on a bundled claim; manual sign-off required", len(ffsLines)),
			Action:   ActionResolveAlert,
		}}
	}

	// No bundle line: standalone FFS billing is unconstrained here.
	return nil
}

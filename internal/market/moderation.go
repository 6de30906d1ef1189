package market

import (
	"fmt"

	"github.com/rentatutor/rentatutor/internal/model"
)

// Decision is the administrator's verdict on a tutor application.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision validates a decision path segment.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// Status is the application status the decision leads to.
func (d Decision) Status() model.ApplicationStatus {
	if d == DecisionApprove {
		return model.ApplicationApproved
	}
	return model.ApplicationRejected
}

// Notice confirms the decision.
func (d Decision) Notice() model.Notice {
	if d == DecisionApprove {
		return success(NoticeTutorApproved, nil)
	}
	return success(NoticeTutorRejected, nil)
}

// FlagAction is how the administrator resolves a flagged session.
type FlagAction string

const (
	FlagDismiss FlagAction = "dismiss"
	FlagWarn    FlagAction = "warn"
	FlagBan     FlagAction = "ban"
)

// FlagActions are offered for every flagged session.
var FlagActions = []FlagAction{FlagDismiss, FlagWarn, FlagBan}

// ParseFlagAction validates an action path segment.
func ParseFlagAction(s string) (FlagAction, error) {
	switch a := FlagAction(s); a {
	case FlagDismiss, FlagWarn, FlagBan:
		return a, nil
	}
	return "", fmt.Errorf("unknown flag action %q", s)
}

// Notice confirms the action.
func (a FlagAction) Notice() model.Notice {
	switch a {
	case FlagWarn:
		return success(NoticeTutorWarned, nil)
	case FlagBan:
		return success(NoticeTutorBanned, nil)
	default:
		return success(NoticeFlagDismissed, nil)
	}
}

// AdminTab is a section of the administrator dashboard.
type AdminTab string

const (
	TabOverview AdminTab = "overview"
	TabTutors   AdminTab = "tutors"
	TabSessions AdminTab = "sessions"
	TabReports  AdminTab = "reports"
)

// AdminTabs lists the tabs in display order.
var AdminTabs = []AdminTab{TabOverview, TabTutors, TabSessions, TabReports}

// ParseAdminTab falls back to the overview.
func ParseAdminTab(s string) AdminTab {
	for _, t := range AdminTabs {
		if string(t) == s {
			return t
		}
	}
	return TabOverview
}

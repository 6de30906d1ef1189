package market

import (
	"slices"
	"strconv"
	"strings"

	"github.com/rentatutor/rentatutor/internal/model"
)

// Step is a page of the tutor application wizard.
type Step int

const (
	StepPersonal Step = iota + 1
	StepAcademic
	StepSubjects
	StepDocuments
	StepTests
)

// MinimumGPA is the lowest grade point average accepted (out of 4.0).
const MinimumGPA = 3.0

// Document is an upload the wizard asks for.
type Document string

const (
	DocumentID         Document = "id"
	DocumentTranscript Document = "transcript"
)

// ApplicationForm accumulates what the applicant typed across steps.
type ApplicationForm struct {
	FullName           string
	Email              string
	Phone              string
	University         string
	GPA                string
	Subjects           []string
	IDUploaded         bool
	TranscriptUploaded bool
}

// Wizard walks an applicant through the five steps. It is not safe for
// concurrent use.
type Wizard struct {
	Step Step
	Form ApplicationForm
}

// NewWizard starts at the personal details step.
func NewWizard() *Wizard {
	return &Wizard{Step: StepPersonal}
}

// Next merges the fields of the current step from in, validates them and
// advances. On the last step it returns the finished application.
func (w *Wizard) Next(in ApplicationForm) (*model.TutorApplication, error) {
	switch w.Step {
	case StepPersonal:
		w.Form.FullName = strings.TrimSpace(in.FullName)
		w.Form.Email = strings.TrimSpace(in.Email)
		w.Form.Phone = strings.TrimSpace(in.Phone)
		if w.Form.FullName == "" || w.Form.Email == "" || w.Form.Phone == "" {
			return nil, invalid(NoticeFillAllFields, nil)
		}
	case StepAcademic:
		w.Form.University = strings.TrimSpace(in.University)
		w.Form.GPA = strings.TrimSpace(in.GPA)
		if w.Form.University == "" || w.Form.GPA == "" {
			return nil, invalid(NoticeFillAllFields, nil)
		}
		gpa, err := strconv.ParseFloat(w.Form.GPA, 64)
		if err != nil || gpa < 0 || gpa > 4 {
			return nil, invalid(NoticeInvalidGPA, nil)
		}
		if gpa < MinimumGPA {
			return nil, invalid(NoticeMinimumGPA, nil)
		}
	case StepSubjects:
		w.Form.Subjects = w.Form.Subjects[:0]
		for _, s := range in.Subjects {
			if slices.Contains(model.Subjects, s) && !slices.Contains(w.Form.Subjects, s) {
				w.Form.Subjects = append(w.Form.Subjects, s)
			}
		}
		if len(w.Form.Subjects) == 0 {
			return nil, invalid(NoticeSelectOneSubject, nil)
		}
	case StepDocuments:
		if !w.Form.IDUploaded || !w.Form.TranscriptUploaded {
			return nil, invalid(NoticeUploadDocuments, nil)
		}
	case StepTests:
		gpa, _ := strconv.ParseFloat(w.Form.GPA, 64)
		return &model.TutorApplication{
			Name:       w.Form.FullName,
			Email:      w.Form.Email,
			Phone:      w.Form.Phone,
			University: w.Form.University,
			GPA:        gpa,
			Subjects:   slices.Clone(w.Form.Subjects),
			Status:     model.ApplicationPending,
		}, nil
	}
	w.Step++
	return nil, nil
}

// Previous goes back one step, stopping at the first.
func (w *Wizard) Previous() {
	if w.Step > StepPersonal {
		w.Step--
	}
}

// Upload marks a document as uploaded. Uploads are simulated.
func (w *Wizard) Upload(doc Document) bool {
	switch doc {
	case DocumentID:
		w.Form.IDUploaded = true
	case DocumentTranscript:
		w.Form.TranscriptUploaded = true
	default:
		return false
	}
	return true
}

// SubmittedNotice is shown once the application is stored.
func SubmittedNotice() model.Notice {
	return success(NoticeApplicationSubmitted, nil)
}

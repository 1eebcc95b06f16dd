package api

import (
	"github.com/contentpilot/contentpilot-backend/internal/automation"
)

type StartSchedulerRequest struct {
	IntervalDays int `json:"intervalDays"`
}

type StartPosterRequest struct {
	IntervalMinutes int `json:"intervalMinutes"`
}

type SpecialDateDTO struct {
	Date        string `json:"date"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Platform    string `json:"platform,omitempty"`
}

func (d SpecialDateDTO) toInput() automation.SpecialDateInput {
	return automation.SpecialDateInput{
		Date:        d.Date,
		Name:        d.Name,
		Description: d.Description,
		Platform:    d.Platform,
	}
}

// ControlResponse answers start/stop/check calls. Changed is false when
// the call was a no-op.
type ControlResponse struct {
	Changed bool   `json:"changed"`
	Message string `json:"message"`
}

type AddSpecialDatesResponse struct {
	Added int    `json:"added"`
	Error string `json:"error,omitempty"`
}

type UpcomingDTO struct {
	Date        string `json:"date"`
	On          string `json:"on"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Platform    string `json:"platform,omitempty"`
}

func toUpcomingDTOs(occ []automation.Occurrence) []UpcomingDTO {
	out := make([]UpcomingDTO, 0, len(occ))
	for _, o := range occ {
		out = append(out, UpcomingDTO{
			Date:        o.Key,
			On:          o.Date.Format("2006-01-02"),
			Name:        o.Name,
			Description: o.Description,
			Platform:    o.Platform,
		})
	}
	return out
}

type HealthDTO struct {
	Status  string   `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

package service

import (
	"github.com/shopspring/decimal"

	"github.com/medcampus/sims-api/internal/models"
)

var hundred = decimal.NewFromInt(100)

// PassingResult is the computed outcome for one result header.
type PassingResult struct {
	FinalOutcome      models.Outcome
	ComponentOutcomes map[string]models.Outcome
}

// ComputePassing evaluates an exam's passing policy over the obtained totals
// and per-component entries. Thresholds are inclusive and compared at full
// precision; a below-threshold score never rounds up over the line.
func ComputePassing(exam *models.Exam, components []models.ExamComponent, totalObtained, totalMax decimal.Decimal, entries []models.ResultComponentEntry) PassingResult {
	byComponent := make(map[string]decimal.Decimal, len(entries))
	for _, entry := range entries {
		byComponent[entry.ComponentID] = entry.MarksObtained
	}

	outcomes := make(map[string]models.Outcome, len(components))
	for _, component := range components {
		marks, ok := byComponent[component.ID]
		if !ok {
			outcomes[component.ID] = models.OutcomeNA
			continue
		}
		outcomes[component.ID] = componentOutcome(component, marks)
	}

	var final models.Outcome
	switch exam.PassingMode {
	case models.PassingTotalOnly:
		final = totalOutcome(exam, totalObtained, totalMax)
	case models.PassingComponentWise:
		final = componentRuleOutcome(exam, components, outcomes)
	case models.PassingHybrid:
		final = combine(totalOutcome(exam, totalObtained, totalMax), componentRuleOutcome(exam, components, outcomes))
	default:
		final = models.OutcomePending
	}

	return PassingResult{FinalOutcome: final, ComponentOutcomes: outcomes}
}

func componentOutcome(component models.ExamComponent, marks decimal.Decimal) models.Outcome {
	switch {
	case component.PassMarks != nil:
		if marks.GreaterThanOrEqual(*component.PassMarks) {
			return models.OutcomePass
		}
		return models.OutcomeFail
	case component.PassPercent != nil && component.MaxMarks.IsPositive():
		percent := marks.Div(component.MaxMarks).Mul(hundred)
		if percent.GreaterThanOrEqual(*component.PassPercent) {
			return models.OutcomePass
		}
		return models.OutcomeFail
	default:
		// No criteria configured: any positive score passes.
		if marks.IsPositive() {
			return models.OutcomePass
		}
		return models.OutcomeFail
	}
}

func totalOutcome(exam *models.Exam, obtained, max decimal.Decimal) models.Outcome {
	switch {
	case exam.PassTotalMarks != nil:
		if obtained.GreaterThanOrEqual(*exam.PassTotalMarks) {
			return models.OutcomePass
		}
		return models.OutcomeFail
	case exam.PassTotalPercent != nil && max.IsPositive():
		percent := obtained.Div(max).Mul(hundred)
		if percent.GreaterThanOrEqual(*exam.PassTotalPercent) {
			return models.OutcomePass
		}
		return models.OutcomeFail
	default:
		return models.OutcomePending
	}
}

func componentRuleOutcome(exam *models.Exam, components []models.ExamComponent, outcomes map[string]models.Outcome) models.Outcome {
	if len(components) == 0 {
		return models.OutcomePending
	}

	if exam.FailIfAnyComponentFail {
		for _, component := range components {
			if outcomes[component.ID] == models.OutcomeFail {
				return models.OutcomeFail
			}
		}
	}

	result := models.OutcomePass
	for _, component := range components {
		if !component.IsMandatoryToPass {
			continue
		}
		switch outcomes[component.ID] {
		case models.OutcomeFail:
			return models.OutcomeFail
		case models.OutcomeNA:
			// A mandatory component without an entry cannot be decided yet.
			result = models.OutcomePending
		}
	}
	return result
}

// combine requires both rules to hold: any FAIL dominates, then any PENDING.
func combine(a, b models.Outcome) models.Outcome {
	if a == models.OutcomeFail || b == models.OutcomeFail {
		return models.OutcomeFail
	}
	if a == models.OutcomePending || b == models.OutcomePending {
		return models.OutcomePending
	}
	return models.OutcomePass
}

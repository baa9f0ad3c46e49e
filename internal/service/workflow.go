package service

import "github.com/medcampus/sims-api/internal/models"

// nextState encodes the only legal forward step from each workflow state.
// Transitions cannot skip states and FROZEN is terminal.
var nextState = map[models.ResultStatus]models.ResultStatus{
	models.ResultDraft:     models.ResultVerified,
	models.ResultVerified:  models.ResultPublished,
	models.ResultPublished: models.ResultFrozen,
}

// CanTransitionWorkflowState is the pure lookup (roles, from, to) -> bool.
// Same-state calls are allowed as no-ops for every role that can see the row;
// advancing requires ADMIN or COORDINATOR.
func CanTransitionWorkflowState(roles []models.Role, from, to models.ResultStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if nextState[from] != to {
		return false
	}
	for _, role := range roles {
		if role == models.RoleAdmin || role == models.RoleCoordinator {
			return true
		}
	}
	return false
}

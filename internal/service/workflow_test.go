package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medcampus/sims-api/internal/models"
)

func TestWorkflowTransitions(t *testing.T) {
	admin := []models.Role{models.RoleAdmin}
	coordinator := []models.Role{models.RoleCoordinator}
	faculty := []models.Role{models.RoleFaculty}
	assistant := []models.Role{models.RoleOfficeAssistant}

	// The happy path advances one state at a time for privileged roles.
	assert.True(t, CanTransitionWorkflowState(admin, models.ResultDraft, models.ResultVerified))
	assert.True(t, CanTransitionWorkflowState(coordinator, models.ResultVerified, models.ResultPublished))
	assert.True(t, CanTransitionWorkflowState(admin, models.ResultPublished, models.ResultFrozen))

	// Skipping states is rejected for everyone.
	assert.False(t, CanTransitionWorkflowState(admin, models.ResultDraft, models.ResultPublished))
	assert.False(t, CanTransitionWorkflowState(admin, models.ResultDraft, models.ResultFrozen))
	assert.False(t, CanTransitionWorkflowState(admin, models.ResultVerified, models.ResultFrozen))

	// FROZEN is terminal for all roles.
	for _, to := range []models.ResultStatus{models.ResultDraft, models.ResultVerified, models.ResultPublished} {
		assert.False(t, CanTransitionWorkflowState(admin, models.ResultFrozen, to))
	}

	// Backward moves are rejected.
	assert.False(t, CanTransitionWorkflowState(admin, models.ResultPublished, models.ResultDraft))

	// Unprivileged roles cannot advance at all.
	assert.False(t, CanTransitionWorkflowState(faculty, models.ResultDraft, models.ResultVerified))
	assert.False(t, CanTransitionWorkflowState(assistant, models.ResultDraft, models.ResultVerified))
	assert.False(t, CanTransitionWorkflowState(nil, models.ResultDraft, models.ResultVerified))

	// Same-state calls are no-ops.
	assert.True(t, CanTransitionWorkflowState(faculty, models.ResultDraft, models.ResultDraft))
	assert.True(t, CanTransitionWorkflowState(admin, models.ResultFrozen, models.ResultFrozen))

	// Unknown states never pass.
	assert.False(t, CanTransitionWorkflowState(admin, "LIMBO", models.ResultVerified))
}

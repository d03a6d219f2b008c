package validator

import (
	"testing"

	"github.com/stretchr/testify/require"

	appErrors "welcome-agent/pkg/errors"
)

type agentPayload struct {
	Name        string `json:"name" validate:"required,max=120"`
	WorkspaceID string `json:"workspaceId" validate:"required"`
	Status      string `json:"status" validate:"omitempty,oneof=draft published"`
}

func TestValidateStructSuccess(t *testing.T) {
	require.NoError(t, ValidateStruct(agentPayload{Name: "Onboarding", WorkspaceID: "w1", Status: "draft"}))
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(agentPayload{Status: "archived"})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, vErrs, 3)

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	require.Equal(t, "required", fields["name"])
	require.Equal(t, "required", fields["workspaceId"])
	require.Equal(t, "oneof", fields["status"])
}

func TestCheckReturnsBadRequest(t *testing.T) {
	err := Check(agentPayload{})
	require.ErrorIs(t, err, appErrors.ErrBadRequest)
}

func TestVarEmail(t *testing.T) {
	require.NoError(t, Var("jane@example.com", "required,email"))
	require.Error(t, Var("not-an-email", "required,email"))
}

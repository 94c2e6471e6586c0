package runlog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class FailureClass
		code  string
	}{
		{"graph", &GraphFailureError{Code: "CycleFound", Message: "a -> b -> a"}, FailureClassGraph, "CycleFound"},
		{"workspace", &WorkspaceFailureError{Message: "bad yaml"}, FailureClassWorkspace, "WorkspaceFailure"},
		{"execution", &ExecutionFailureError{Target: "send", ExitCode: 1, Message: "scp"}, FailureClassExecution, "Exit1"},
		{"system", &SystemFailureError{Code: "IO", Message: "disk"}, FailureClassSystem, "IO"},
		{"wrapped graph", fmt.Errorf("loading: %w", &GraphFailureError{Message: "x"}), FailureClassGraph, "GraphFailure"},
		{"cancelled", fmt.Errorf("execution cancelled: %w", context.Canceled), FailureClassSystem, "Cancelled"},
		{"unknown", errors.New("boom"), FailureClassSystem, "UnknownError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Classify(tt.err)
			require.NoError(t, err)
			assert.Equal(t, tt.class, f.FailureClass)
			assert.Equal(t, tt.code, f.ErrorCode)
			assert.NoError(t, f.Validate())
		})
	}
}

func TestClassify_ExecutionCarriesTarget(t *testing.T) {
	f, err := Classify(&ExecutionFailureError{Target: "nb2html", ExitCode: 2, Message: "m"})
	require.NoError(t, err)
	require.NotNil(t, f.Target)
	assert.Equal(t, "nb2html", *f.Target)
}

func TestClassify_Nil(t *testing.T) {
	_, err := Classify(nil)
	require.Error(t, err)
}

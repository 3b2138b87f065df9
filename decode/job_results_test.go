package decode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nixta/gp-datatype-proxy/decode"
)

func TestUnitTestMatchJobResultPath(t *testing.T) {
	testCases := []struct {
		name        string
		path        string
		expectMatch bool
		expected    decode.JobResultIdentity
	}{
		{
			name:        "job result path",
			path:        "/arcgis/rest/services/tasks/GPServer/createbuffers/jobs/abc123/results/bufferlayer",
			expectMatch: true,
			expected:    decode.JobResultIdentity{ToolName: "createbuffers", ParameterName: "bufferlayer"},
		},
		{
			name:        "case is preserved",
			path:        "/arcgis/rest/services/tasks/GPServer/CreateBuffers/jobs/j0b-1d/results/bufferLayer",
			expectMatch: true,
			expected:    decode.JobResultIdentity{ToolName: "CreateBuffers", ParameterName: "bufferLayer"},
		},
		{
			name:        "trailing segments are ignored",
			path:        "/arcgis/rest/services/tasks/GPServer/FindHotSpots/jobs/xyz/results/processInfo/extra",
			expectMatch: true,
			expected:    decode.JobResultIdentity{ToolName: "FindHotSpots", ParameterName: "processInfo"},
		},
		{
			name:        "parameter match stops at first non letter",
			path:        "/arcgis/rest/services/tasks/GPServer/createbuffers/jobs/abc/results/bufferlayer2",
			expectMatch: true,
			expected:    decode.JobResultIdentity{ToolName: "createbuffers", ParameterName: "bufferlayer"},
		},
		{
			name:        "digits in tool segment",
			path:        "/arcgis/rest/services/tasks/GPServer/tool1/jobs/abc/results/bufferlayer",
			expectMatch: false,
		},
		{
			name:        "punctuation in tool segment",
			path:        "/arcgis/rest/services/tasks/GPServer/create_buffers/jobs/abc/results/bufferlayer",
			expectMatch: false,
		},
		{
			name:        "digits leading parameter segment",
			path:        "/arcgis/rest/services/tasks/GPServer/createbuffers/jobs/abc/results/1bufferlayer",
			expectMatch: false,
		},
		{
			name:        "empty job id",
			path:        "/arcgis/rest/services/tasks/GPServer/createbuffers/jobs//results/bufferlayer",
			expectMatch: false,
		},
		{
			name:        "not anchored at start",
			path:        "/override-only/arcgis/rest/services/tasks/GPServer/createbuffers/jobs/abc/results/bufferlayer",
			expectMatch: false,
		},
		{
			name:        "job status path",
			path:        "/arcgis/rest/services/tasks/GPServer/createbuffers/jobs/abc",
			expectMatch: false,
		},
		{
			name:        "empty path",
			path:        "",
			expectMatch: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			identity, matched := decode.MatchJobResultPath(tc.path)
			require.Equal(t, tc.expectMatch, matched)
			require.Equal(t, tc.expected, identity)
		})
	}
}

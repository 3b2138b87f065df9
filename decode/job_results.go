// package decode extracts the identity of a geoprocessing job result
// from the request path it was fetched through
package decode

import "regexp"

// jobResultPathPattern matches
// /arcgis/rest/services/tasks/GPServer/<tool>/jobs/<jobId>/results/<parameter>
// anchored at the start of the path only, tool and parameter are letters only
var jobResultPathPattern = regexp.MustCompile(`^/arcgis/rest/services/tasks/GPServer/([a-zA-Z]+)/jobs/[^/]+/results/([a-zA-Z]+)`)

// JobResultIdentity names the tool and output parameter a job result belongs to
type JobResultIdentity struct {
	ToolName      string
	ParameterName string
}

// MatchJobResultPath attempts to extract the tool and parameter names
// from a job results request path, returning false if the path is not
// a job results path
func MatchJobResultPath(path string) (JobResultIdentity, bool) {
	match := jobResultPathPattern.FindStringSubmatch(path)
	if match == nil {
		return JobResultIdentity{}, false
	}

	return JobResultIdentity{
		ToolName:      match[1],
		ParameterName: match[2],
	}, true
}

// package overrides maps geoprocessing tool output parameters to the
// data type clients should treat them as, and resolves the corrected
// type for a job result
package overrides

import "strings"

// CanonicalType is an opaque data type label such as "GPFeatureRecordSetLayer"
type CanonicalType string

const (
	GPFeatureRecordSetLayer            CanonicalType = "GPFeatureRecordSetLayer"
	GPRecordSet                        CanonicalType = "GPRecordSet"
	GPString                           CanonicalType = "GPString"
	PortalItem                         CanonicalType = "PortalItem"
	ArrayOfPortalItems                 CanonicalType = "Array of PortalItems"
	GPFeatureRecordSetLayerOrRecordSet CanonicalType = "GPFeatureRecordSetLayer or GPRecordSet"
)

// TypeLookupTable maps tool name -> output parameter name -> canonical type.
// Keys are lower cased on construction and lookup, the table is never
// mutated after construction so it is safe for concurrent use.
type TypeLookupTable struct {
	tools map[string]map[string]CanonicalType
}

// NewTypeLookupTable copies lookups into a new table keyed case-insensitively
func NewTypeLookupTable(lookups map[string]map[string]CanonicalType) *TypeLookupTable {
	tools := make(map[string]map[string]CanonicalType, len(lookups))

	for tool, parameters := range lookups {
		toolKey := strings.ToLower(tool)
		if _, ok := tools[toolKey]; !ok {
			tools[toolKey] = make(map[string]CanonicalType, len(parameters))
		}
		for parameter, canonicalType := range parameters {
			tools[toolKey][strings.ToLower(parameter)] = canonicalType
		}
	}

	return &TypeLookupTable{tools: tools}
}

// Lookup returns the canonical type registered for the output parameter
// of tool, and whether one exists. Missing tools and parameters are not errors.
func (t *TypeLookupTable) Lookup(tool, parameter string) (CanonicalType, bool) {
	if t == nil {
		return "", false
	}

	parameters, ok := t.tools[strings.ToLower(tool)]
	if !ok {
		return "", false
	}

	canonicalType, ok := parameters[strings.ToLower(parameter)]
	return canonicalType, ok
}

// Len returns the number of tools in the table
func (t *TypeLookupTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.tools)
}

// DefaultTypeLookupTable returns the table of output types for the
// spatial analysis service tools
func DefaultTypeLookupTable() *TypeLookupTable {
	return NewTypeLookupTable(defaultTypeLookups)
}

var defaultTypeLookups = map[string]map[string]CanonicalType{
	"aggregatepoints": {
		"aggregatedlayer": GPFeatureRecordSetLayer,
		"groupsummary":    GPRecordSet,
	},
	"calculatedensity": {
		"resultlayer": GPFeatureRecordSetLayer,
	},
	"choosebestfacilities": {
		"allocateddemandlocationslayer": GPFeatureRecordSetLayer,
		"allocationlineslayer":          GPFeatureRecordSetLayer,
		"assignedfacilitieslayer":       GPFeatureRecordSetLayer,
	},
	"connectoriginstodestinations": {
		"routeslayer":                 GPFeatureRecordSetLayer,
		"unassignedoriginslayer":      GPFeatureRecordSetLayer,
		"unassigneddestinationslayer": GPFeatureRecordSetLayer,
		"routelayeritems":             ArrayOfPortalItems,
	},
	"createbuffers": {
		"bufferlayer": GPFeatureRecordSetLayer,
	},
	"createdrivetimeareas": {
		"drivetimeareaslayer":   GPFeatureRecordSetLayer,
		"reachablestreetslayer": GPFeatureRecordSetLayer,
	},
	"createthresholdareas": {
		"resultlayer": GPFeatureRecordSetLayer,
	},
	"createviewshed": {
		"viewshedlayer": GPFeatureRecordSetLayer,
	},
	"createwatersheds": {
		"watershedlayer": GPFeatureRecordSetLayer,
	},
	"derivenewlocations": {
		"resultlayer": GPFeatureRecordSetLayer,
	},
	"dissolveboundaries": {
		"dissolvedlayer": GPFeatureRecordSetLayer,
	},
	"enrichlayer": {
		"enrichedlayer": GPFeatureRecordSetLayer,
	},
	"extractdata": {
		"contentid": PortalItem,
	},
	"findcentroids": {
		"outputlayer": GPFeatureRecordSetLayer,
	},
	"findexistinglocations": {
		"resultlayer": GPFeatureRecordSetLayer,
	},
	"findhotspots": {
		"hotspotsresultlayer": GPFeatureRecordSetLayer,
		"processinfo":         GPString,
	},
	"findnearest": {
		"nearestlayer":         GPFeatureRecordSetLayer,
		"connectinglineslayer": GPFeatureRecordSetLayer,
		"routelayeritems":      ArrayOfPortalItems,
	},
	"findoutliers": {
		"outliersresultlayer": GPFeatureRecordSetLayer,
		"processinfo":         GPString,
	},
	"findpointclusters": {
		"pointclustersresultlayer": GPFeatureRecordSetLayer,
	},
	"findsimilarlocations": {
		"similarresultlayer": GPFeatureRecordSetLayer,
		"processinfo":        GPString,
	},
	"generatetessellations": {
		"tessellationlayer": GPFeatureRecordSetLayer,
	},
	"interpolatepoints": {
		"resultlayer":         GPFeatureRecordSetLayer,
		"predictionerror":     GPRecordSet,
		"predictedpointlayer": GPFeatureRecordSetLayer,
	},
	"joinfeatures": {
		"outputlayer": GPFeatureRecordSetLayerOrRecordSet,
	},
	"mergelayers": {
		"mergedlayer": GPFeatureRecordSetLayer,
	},
	"overlaylayers": {
		"outputlayer": GPFeatureRecordSetLayer,
	},
	"planroutes": {
		"routeslayer":          GPFeatureRecordSetLayer,
		"assignedstopslayer":   GPFeatureRecordSetLayer,
		"unassignedstopslayer": GPFeatureRecordSetLayer,
		"routelayeritems":      ArrayOfPortalItems,
	},
	"summarizecenteranddispersion": {
		"centralfeatureresultlayer": GPFeatureRecordSetLayer,
		"meancenterresultlayer":     GPFeatureRecordSetLayer,
		"mediancenterresultlayer":   GPFeatureRecordSetLayer,
		"ellipseresultlayer":        GPFeatureRecordSetLayer,
	},
	"summarizenearby": {
		"resultlayer":    GPFeatureRecordSetLayer,
		"groupbysummary": GPRecordSet,
	},
	"summarizewithin": {
		"resultlayer":    GPFeatureRecordSetLayer,
		"groupbysummary": GPRecordSet,
	},
	"tracedownstream": {
		"tracelayer": GPFeatureRecordSetLayer,
	},
}

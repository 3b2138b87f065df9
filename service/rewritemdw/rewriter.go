package rewritemdw

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/nixta/gp-datatype-proxy/decode"
	"github.com/nixta/gp-datatype-proxy/logging"
	"github.com/nixta/gp-datatype-proxy/overrides"
)

const (
	DataTypeFieldKey         = "dataType"
	DataTypeOverrideFieldKey = "dataTypeOverride"
	ValueFieldKey            = "value"
)

// Outcome describes what the rewriter did with a response
type Outcome string

const (
	OutcomeNotJSON             Outcome = "not_json"
	OutcomeEmptyBody           Outcome = "empty_body"
	OutcomeUnsupportedEncoding Outcome = "unsupported_encoding"
	OutcomeNoPathMatch         Outcome = "no_path_match"
	OutcomeNoDataType          Outcome = "no_data_type"
	OutcomeRewritten           Outcome = "rewritten"
	OutcomeMalformedJSON       Outcome = "malformed_json"
	OutcomeUndecodableBody     Outcome = "undecodable_body"
	OutcomeBodyTooLarge        Outcome = "body_too_large"
)

// Result is the output of rewriting a single response body
type Result struct {
	// Body is the body to send to the caller
	Body []byte
	// ContentDecoded is true when Body is no longer in the upstream
	// content encoding and the Content-Encoding header must be dropped
	ContentDecoded bool
	Outcome        Outcome
	// Identity and Override are set once the request path matched
	// and the body carried a dataType
	Identity decode.JobResultIdentity
	Override overrides.CanonicalType
	// OriginalDataType and Value are the raw json of the job result fields
	OriginalDataType string
	Value            string
}

// ResponseRewriterConfig wraps values used to create a new ResponseRewriter
type ResponseRewriterConfig struct {
	Resolver overrides.Resolver
	// MaxBodyBytes bounds buffered and decoded json bodies, <= 0 is unbounded
	MaxBodyBytes  int64
	ServiceLogger *logging.ServiceLogger
}

// ResponseRewriter corrects job result data types in upstream json responses.
// It holds no mutable state and is safe for concurrent use.
type ResponseRewriter struct {
	resolver     overrides.Resolver
	maxBodyBytes int64
	*logging.ServiceLogger
}

// New creates a new ResponseRewriter
func New(config ResponseRewriterConfig) *ResponseRewriter {
	return &ResponseRewriter{
		resolver:      config.Resolver,
		maxBodyBytes:  config.MaxBodyBytes,
		ServiceLogger: config.ServiceLogger,
	}
}

// Rewrite applies mode to body, the complete upstream response body for a
// request to requestPath. Bodies that are not json, not job results or carry
// no dataType are returned unchanged. A body declared as json that does not
// parse is reported as ErrMalformedJSONBody.
func (rw *ResponseRewriter) Rewrite(requestPath string, header http.Header, body []byte, mode Mode) (Result, error) {
	passthrough := func(outcome Outcome) (Result, error) {
		return Result{Body: body, Outcome: outcome}, nil
	}

	if !IsJSONContentType(header) {
		return passthrough(OutcomeNotJSON)
	}

	if len(body) == 0 {
		return passthrough(OutcomeEmptyBody)
	}

	encoding := contentEncoding(header)
	if !isSupportedEncoding(encoding) {
		return passthrough(OutcomeUnsupportedEncoding)
	}

	decoded, err := decodeBody(encoding, body, rw.maxBodyBytes)
	if err != nil {
		return Result{Outcome: outcomeForError(err)}, fmt.Errorf("decoding response for %s: %w", requestPath, err)
	}

	if !gjson.ValidBytes(decoded) {
		return Result{Outcome: OutcomeMalformedJSON}, fmt.Errorf("%w: %s", ErrMalformedJSONBody, requestPath)
	}

	identity, matched := decode.MatchJobResultPath(requestPath)
	if !matched {
		return passthrough(OutcomeNoPathMatch)
	}

	document := gjson.ParseBytes(decoded)
	if !document.IsObject() {
		return passthrough(OutcomeNoDataType)
	}

	dataType, _ := lastMember(document, DataTypeFieldKey)
	if !dataType.Exists() {
		return passthrough(OutcomeNoDataType)
	}

	value, _ := lastMember(document, ValueFieldKey)
	originalType := overrides.CanonicalType(dataType.String())
	override := rw.resolver.Resolve(identity.ToolName, identity.ParameterName, originalType, value.Value())
	// a non string dataType the table has no entry for is written back as is
	keepRaw := dataType.Type != gjson.String && override == originalType

	rewritten := decoded

	if mode.Includes(ModeInject) {
		rewritten, err = dropDuplicateMembers(rewritten, DataTypeOverrideFieldKey)
		if err != nil {
			return Result{Outcome: OutcomeMalformedJSON}, fmt.Errorf("%w: removing duplicate %s for %s: %v", ErrMalformedJSONBody, DataTypeOverrideFieldKey, requestPath, err)
		}
		if keepRaw {
			rewritten, err = sjson.SetRawBytes(rewritten, DataTypeOverrideFieldKey, []byte(dataType.Raw))
		} else {
			rewritten, err = sjson.SetBytes(rewritten, DataTypeOverrideFieldKey, string(override))
		}
		if err != nil {
			return Result{Outcome: OutcomeMalformedJSON}, fmt.Errorf("%w: setting %s for %s: %v", ErrMalformedJSONBody, DataTypeOverrideFieldKey, requestPath, err)
		}
	}

	if mode.Includes(ModeReplace) && !keepRaw {
		rewritten, err = dropDuplicateMembers(rewritten, DataTypeFieldKey)
		if err != nil {
			return Result{Outcome: OutcomeMalformedJSON}, fmt.Errorf("%w: removing duplicate %s for %s: %v", ErrMalformedJSONBody, DataTypeFieldKey, requestPath, err)
		}
		rewritten, err = sjson.SetBytes(rewritten, DataTypeFieldKey, string(override))
		if err != nil {
			return Result{Outcome: OutcomeMalformedJSON}, fmt.Errorf("%w: setting %s for %s: %v", ErrMalformedJSONBody, DataTypeFieldKey, requestPath, err)
		}
	}

	return Result{
		Body:             rewritten,
		ContentDecoded:   encoding != "",
		Outcome:          OutcomeRewritten,
		Identity:         identity,
		Override:         override,
		OriginalDataType: dataType.Raw,
		Value:            value.Raw,
	}, nil
}

// lastMember returns the last value of key in the object and how many times
// key occurs. Duplicate keys resolve to the last one, as JSON.parse does.
func lastMember(object gjson.Result, key string) (gjson.Result, int) {
	var last gjson.Result
	count := 0

	object.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			last = v
			count++
		}
		return true
	})

	return last, count
}

// dropDuplicateMembers removes every occurrence of key when it occurs more
// than once, so a following set appends a single member. A single
// occurrence is left in place.
func dropDuplicateMembers(json []byte, key string) ([]byte, error) {
	_, count := lastMember(gjson.ParseBytes(json), key)
	if count < 2 {
		return json, nil
	}

	var err error
	for i := 0; i < count; i++ {
		json, err = sjson.DeleteBytes(json, key)
		if err != nil {
			return nil, err
		}
	}

	return json, nil
}

func outcomeForError(err error) Outcome {
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return OutcomeBodyTooLarge
	case errors.Is(err, ErrMalformedJSONBody):
		return OutcomeMalformedJSON
	default:
		return OutcomeUndecodableBody
	}
}

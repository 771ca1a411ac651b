package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Operation is the discriminator of a CarbonFlow action.
type Operation string

const (
	OperationAdd       Operation = "add"
	OperationUpdate    Operation = "update"
	OperationDelete    Operation = "delete"
	OperationQuery     Operation = "query"
	OperationConnect   Operation = "connect"
	OperationLayout    Operation = "layout"
	OperationCalculate Operation = "calculate"
)

// LayoutType selects the deterministic layout algorithm.
type LayoutType string

const (
	LayoutHierarchical LayoutType = "hierarchical"
	LayoutForce        LayoutType = "force"
	LayoutManual       LayoutType = "manual"
)

// AggregationMode selects how unknown footprints propagate into the total.
// The mode is always explicit in the call; strict is the documented default
// at the API boundary, never a hidden flip.
type AggregationMode string

const (
	AggregationStrict  AggregationMode = "strict"
	AggregationLenient AggregationMode = "lenient"
)

// Action is one instruction against a workflow graph. Each variant carries
// exactly the fields its operation needs, so invalid combinations are
// unrepresentable. Actions are applied exactly once and then discarded.
type Action interface {
	Operation() Operation
}

// NodePatch is a partial node update. Nil fields are left untouched.
type NodePatch struct {
	Label         *string            `json:"label,omitempty"`
	Stage         *LifecycleStage    `json:"stage,omitempty"`
	Emission      *string            `json:"emission_type,omitempty"`
	Description   *string            `json:"description,omitempty"`
	Quantity      *float64           `json:"quantity,omitempty"               validate:"omitempty,min=0"`
	Unit          *string            `json:"unit,omitempty"`
	QuantityAI    *bool              `json:"quantity_ai_generated,omitempty"`
	UnitAI        *bool              `json:"unit_ai_generated,omitempty"`
	ActivityScore *float64           `json:"activity_score,omitempty"         validate:"omitempty,min=0,max=1"`
	Verification  *VerificationStatus `json:"verification_status,omitempty"`
	Evidence      *VerificationStatus `json:"evidence_status,omitempty"`
	HasEvidence   *bool              `json:"has_evidence_files,omitempty"`
	Supplementary *string            `json:"supplementary_info,omitempty"`

	// Factor sets a manual factor override, bypassing the matcher.
	Factor *FactorMatch `json:"factor,omitempty"`
}

// TouchesActivity reports whether the patch changes quantity, unit or
// description, which requires a fresh factor match.
func (p NodePatch) TouchesActivity() bool {
	return p.Quantity != nil || p.Unit != nil || p.Description != nil
}

// QueryFilter narrows a query action to a node-id or type subset. Empty
// filter returns the whole graph.
type QueryFilter struct {
	NodeID string   `json:"node_id,omitempty"`
	Type   NodeType `json:"type,omitempty"`
}

type AddAction struct {
	Type     NodeType  `json:"node_type" validate:"required"`
	Position *Position `json:"position,omitempty"`
	Patch    NodePatch `json:"content"`
}

func (AddAction) Operation() Operation { return OperationAdd }

type UpdateAction struct {
	NodeID string    `json:"node_id" validate:"required"`
	Patch  NodePatch `json:"content"`
}

func (UpdateAction) Operation() Operation { return OperationUpdate }

type DeleteAction struct {
	NodeID string `json:"node_id" validate:"required"`
}

func (DeleteAction) Operation() Operation { return OperationDelete }

type ConnectAction struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

func (ConnectAction) Operation() Operation { return OperationConnect }

type QueryAction struct {
	Filter QueryFilter `json:"content"`
}

func (QueryAction) Operation() Operation { return OperationQuery }

type LayoutAction struct {
	Layout LayoutType `json:"layout_type" validate:"required,oneof=hierarchical force manual"`
}

func (LayoutAction) Operation() Operation { return OperationLayout }

type CalculateAction struct {
	Mode AggregationMode `json:"mode,omitempty" validate:"omitempty,oneof=strict lenient"`
}

func (CalculateAction) Operation() Operation { return OperationCalculate }

// ErrMalformedAction indicates an action envelope that failed schema
// validation or decoding. Always the caller's bug, never retried.
var ErrMalformedAction = errors.New("malformed action")

// actionSchema validates the wire envelope before any decoding happens.
// Actions frequently originate from an LLM agent, so shape errors are
// expected input, not programming errors.
const actionSchema = `{
	"type": "object",
	"required": ["operation"],
	"properties": {
		"operation": {
			"enum": ["add", "update", "delete", "query", "connect", "layout", "calculate"]
		},
		"nodeType": {"type": "string"},
		"nodeId": {"type": "string"},
		"source": {"type": "string"},
		"target": {"type": "string"},
		"layoutType": {"enum": ["hierarchical", "force", "manual"]},
		"mode": {"enum": ["strict", "lenient"]},
		"position": {
			"type": "object",
			"properties": {
				"x": {"type": "number"},
				"y": {"type": "number"}
			}
		},
		"content": {"type": "object"}
	},
	"allOf": [
		{"if": {"properties": {"operation": {"const": "add"}}},
		 "then": {"required": ["nodeType"]}},
		{"if": {"properties": {"operation": {"const": "update"}}},
		 "then": {"required": ["nodeId"]}},
		{"if": {"properties": {"operation": {"const": "delete"}}},
		 "then": {"required": ["nodeId"]}},
		{"if": {"properties": {"operation": {"const": "connect"}}},
		 "then": {"required": ["source", "target"]}},
		{"if": {"properties": {"operation": {"const": "layout"}}},
		 "then": {"required": ["layoutType"]}}
	]
}`

var actionSchemaLoader = gojsonschema.NewStringLoader(actionSchema)

// actionEnvelope mirrors the loosely-typed wire record emitted by the UI and
// the agent layer. DecodeAction converts it into a typed variant.
type actionEnvelope struct {
	Operation  Operation       `json:"operation"`
	NodeType   NodeType        `json:"nodeType,omitempty"`
	NodeID     string          `json:"nodeId,omitempty"`
	Source     string          `json:"source,omitempty"`
	Target     string          `json:"target,omitempty"`
	Position   *Position       `json:"position,omitempty"`
	LayoutType LayoutType      `json:"layoutType,omitempty"`
	Mode       AggregationMode `json:"mode,omitempty"`
	Content    json.RawMessage `json:"content,omitempty"`
}

// DecodeAction validates raw action JSON against the envelope schema and
// returns the typed variant for its operation.
func DecodeAction(raw []byte) (Action, error) {
	result, err := gojsonschema.Validate(actionSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrMalformedAction, strings.Join(details, "; "))
	}

	var env actionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}

	return env.toAction()
}

func (env actionEnvelope) toAction() (Action, error) {
	switch env.Operation {
	case OperationAdd:
		action := AddAction{Type: env.NodeType, Position: env.Position}
		if err := env.decodeContent(&action.Patch); err != nil {
			return nil, err
		}

		return action, nil
	case OperationUpdate:
		action := UpdateAction{NodeID: env.NodeID}
		if err := env.decodeContent(&action.Patch); err != nil {
			return nil, err
		}

		return action, nil
	case OperationDelete:
		return DeleteAction{NodeID: env.NodeID}, nil
	case OperationConnect:
		return ConnectAction{Source: env.Source, Target: env.Target}, nil
	case OperationQuery:
		action := QueryAction{}
		if err := env.decodeContent(&action.Filter); err != nil {
			return nil, err
		}

		return action, nil
	case OperationLayout:
		return LayoutAction{Layout: env.LayoutType}, nil
	case OperationCalculate:
		mode := env.Mode
		if mode == "" {
			mode = AggregationStrict
		}

		return CalculateAction{Mode: mode}, nil
	default:
		return nil, fmt.Errorf("%w: unknown operation %q", ErrMalformedAction, env.Operation)
	}
}

func (env actionEnvelope) decodeContent(into any) error {
	if len(env.Content) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Content, into); err != nil {
		return fmt.Errorf("%w: invalid content for %s: %v", ErrMalformedAction, env.Operation, err)
	}

	return nil
}

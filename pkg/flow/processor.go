package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carbonlens/carbonflow/pkg/config"
	"github.com/carbonlens/carbonflow/pkg/matcher"
	"github.com/carbonlens/carbonflow/pkg/models"
	"github.com/carbonlens/carbonflow/pkg/otelhelper"
)

// Result is the outcome of one applied action. Only the fields relevant to
// the action's operation are set.
type Result struct {
	NodeID  string         `json:"node_id,omitempty"`
	Node    *models.Node   `json:"node,omitempty"`
	Nodes   []*models.Node `json:"nodes,omitempty"`
	Edges   []models.Edge  `json:"edges,omitempty"`
	Summary *Summary       `json:"summary,omitempty"`

	// Diagnostics reports degradations (matcher unavailability) that did
	// not fail the action.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// Processor interprets CarbonFlow actions against a workflow graph.
//
// The processor is stateless between actions: the graph is the only state,
// owned by the caller. Actions are applied one at a time; concurrent actions
// against the same workflow id must be serialized by the caller (see
// services.Workflow). An action either fully succeeds — Apply returns the new
// graph — or fully fails with the input graph untouched.
type Processor struct {
	cfg     config.Config
	matcher *matcher.Client
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewProcessor creates an action processor. The matcher client may be nil,
// in which case factor matching is skipped and touched nodes stay unmatched.
func NewProcessor(cfg config.Config, matcherClient *matcher.Client, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:     cfg,
		matcher: matcherClient,
		logger:  logger.With("module", "action_processor"),
		tracer:  otel.Tracer("carbonflow/flow"),
	}
}

// Apply validates and applies a single action. The returned graph is the new
// state; on error it is the unchanged input graph.
func (p *Processor) Apply(ctx context.Context, g *models.WorkflowGraph, action models.Action) (*models.WorkflowGraph, Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "flow.apply",
		attribute.String(otelhelper.WorkflowIDKey, g.WorkflowID),
		attribute.String(otelhelper.OperationKey, string(action.Operation())),
	)
	defer span.End()

	switch a := action.(type) {
	case models.AddAction:
		return p.applyAdd(ctx, g, a)
	case models.UpdateAction:
		return p.applyUpdate(ctx, g, a)
	case models.DeleteAction:
		return p.applyDelete(g, a)
	case models.ConnectAction:
		return p.applyConnect(g, a)
	case models.QueryAction:
		return p.applyQuery(g, a)
	case models.LayoutAction:
		return p.applyLayoutAction(g, a)
	case models.CalculateAction:
		return p.applyCalculate(g, a)
	default:
		return g, Result{}, &ActionError{
			Op:         action.Operation(),
			WorkflowID: g.WorkflowID,
			Err:        fmt.Errorf("%w: unsupported action %T", models.ErrMalformedAction, action),
		}
	}
}

func (p *Processor) applyAdd(ctx context.Context, g *models.WorkflowGraph, a models.AddAction) (*models.WorkflowGraph, Result, error) {
	if !models.ValidNodeType(a.Type) {
		return g, Result{}, &ActionError{
			Op:         models.OperationAdd,
			WorkflowID: g.WorkflowID,
			Err:        fmt.Errorf("%w: %q", ErrUnknownNodeType, a.Type),
		}
	}

	next := g.Clone()

	node := &models.Node{
		ID:          uuid.NewString(),
		WorkflowID:  next.WorkflowID,
		Type:        a.Type,
		Stage:       models.LifecycleStage(a.Type),
		Label:       string(a.Type),
		MatchStatus: models.MatchStatusUnmatched,
	}

	if a.Position != nil {
		node.Position = *a.Position
	} else {
		node.Position = defaultPosition(next.Len())
	}

	if err := applyPatch(node, a.Patch); err != nil {
		return g, Result{}, &ActionError{Op: models.OperationAdd, WorkflowID: g.WorkflowID, Err: err}
	}

	result := Result{NodeID: node.ID}

	if a.Patch.TouchesActivity() && a.Patch.Factor == nil {
		p.matchNode(ctx, node, &result)
	}

	node.Normalize(p.cfg.Thresholds)

	if err := next.AddNode(node); err != nil {
		return g, Result{}, &ActionError{Op: models.OperationAdd, WorkflowID: g.WorkflowID, Err: err}
	}

	p.logger.InfoContext(ctx, "Node added", "workflow_id", next.WorkflowID, "node_id", node.ID, "node_type", node.Type)

	result.Node = node

	return next, result, nil
}

func (p *Processor) applyUpdate(ctx context.Context, g *models.WorkflowGraph, a models.UpdateAction) (*models.WorkflowGraph, Result, error) {
	if !g.HasNode(a.NodeID) {
		return g, Result{}, &ActionError{
			Op:         models.OperationUpdate,
			WorkflowID: g.WorkflowID,
			NodeID:     a.NodeID,
			Err:        ErrNodeNotFound,
		}
	}

	next := g.Clone()
	node := next.Node(a.NodeID)

	if err := applyPatch(node, a.Patch); err != nil {
		return g, Result{}, &ActionError{Op: models.OperationUpdate, WorkflowID: g.WorkflowID, NodeID: a.NodeID, Err: err}
	}

	result := Result{NodeID: node.ID}

	// A manual factor override in the same patch wins over re-matching.
	if a.Patch.TouchesActivity() && a.Patch.Factor == nil {
		p.matchNode(ctx, node, &result)
	}

	node.Normalize(p.cfg.Thresholds)

	p.logger.InfoContext(ctx, "Node updated", "workflow_id", next.WorkflowID, "node_id", node.ID, "match_status", node.MatchStatus)

	result.Node = node

	return next, result, nil
}

func (p *Processor) applyDelete(g *models.WorkflowGraph, a models.DeleteAction) (*models.WorkflowGraph, Result, error) {
	// Absence is reported, not silently ignored, so callers can tell
	// "deleted" from "nothing happened".
	if !g.HasNode(a.NodeID) {
		return g, Result{}, &ActionError{
			Op:         models.OperationDelete,
			WorkflowID: g.WorkflowID,
			NodeID:     a.NodeID,
			Err:        ErrNodeNotFound,
		}
	}

	next := g.Clone()
	next.RemoveNode(a.NodeID)

	return next, Result{NodeID: a.NodeID}, nil
}

func (p *Processor) applyConnect(g *models.WorkflowGraph, a models.ConnectAction) (*models.WorkflowGraph, Result, error) {
	wrap := func(err error) error {
		return &ActionError{Op: models.OperationConnect, WorkflowID: g.WorkflowID, Err: err}
	}

	if a.Source == a.Target {
		return g, Result{}, wrap(ErrSelfConnection)
	}

	if !g.HasNode(a.Source) {
		return g, Result{}, wrap(fmt.Errorf("%w: source %s", ErrNodeNotFound, a.Source))
	}

	if !g.HasNode(a.Target) {
		return g, Result{}, wrap(fmt.Errorf("%w: target %s", ErrNodeNotFound, a.Target))
	}

	next := g.Clone()

	// Connect is idempotent: re-adding an existing edge succeeds without
	// duplication.
	if err := next.Connect(a.Source, a.Target); err != nil {
		return g, Result{}, wrap(err)
	}

	return next, Result{Edges: next.Edges()}, nil
}

func (p *Processor) applyQuery(g *models.WorkflowGraph, a models.QueryAction) (*models.WorkflowGraph, Result, error) {
	if a.Filter.NodeID != "" {
		node := g.Node(a.Filter.NodeID)
		if node == nil {
			return g, Result{}, &ActionError{
				Op:         models.OperationQuery,
				WorkflowID: g.WorkflowID,
				NodeID:     a.Filter.NodeID,
				Err:        ErrNodeNotFound,
			}
		}

		return g, Result{NodeID: node.ID, Node: node, Nodes: []*models.Node{node}}, nil
	}

	nodes := g.Nodes()

	if a.Filter.Type != "" {
		filtered := make([]*models.Node, 0, len(nodes))

		for _, n := range nodes {
			if n.Type == a.Filter.Type {
				filtered = append(filtered, n)
			}
		}

		nodes = filtered
	}

	return g, Result{Nodes: nodes, Edges: g.Edges()}, nil
}

func (p *Processor) applyLayoutAction(g *models.WorkflowGraph, a models.LayoutAction) (*models.WorkflowGraph, Result, error) {
	next := g.Clone()

	if err := applyLayout(next, a.Layout); err != nil {
		return g, Result{}, &ActionError{Op: models.OperationLayout, WorkflowID: g.WorkflowID, Err: err}
	}

	return next, Result{Nodes: next.Nodes()}, nil
}

func (p *Processor) applyCalculate(g *models.WorkflowGraph, a models.CalculateAction) (*models.WorkflowGraph, Result, error) {
	mode := a.Mode
	if mode == "" {
		mode = models.AggregationStrict
	}

	next := g.Clone()

	// Refresh the derived footprint annotation on every node; factor and
	// activity fields are never touched here.
	for _, node := range next.Nodes() {
		if value, known := models.DeriveFootprint(node); known {
			v := value
			node.Footprint = &v
		} else {
			node.Footprint = nil
		}
	}

	summary, err := Aggregate(next, mode)
	if err != nil {
		return g, Result{}, &ActionError{Op: models.OperationCalculate, WorkflowID: g.WorkflowID, Err: err}
	}

	return next, Result{Summary: &summary}, nil
}

// matchNode performs exactly one matcher query for the node and applies the
// best candidate. Matcher failures degrade gracefully: the action still
// succeeds, the node is left unmatched with an attached diagnostic.
func (p *Processor) matchNode(ctx context.Context, node *models.Node, result *Result) {
	if p.matcher == nil || node.Activity.Description == "" {
		return
	}

	ctx, span := otelhelper.StartSpan(ctx, p.tracer, "matcher.match",
		attribute.String(otelhelper.WorkflowIDKey, node.WorkflowID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
	)
	defer span.End()

	query := matcher.Query{
		Description: node.Activity.Description,
		Unit:        node.Activity.Unit,
	}

	if node.Activity.Quantity != nil {
		query.Quantity = *node.Activity.Quantity
	}

	candidates, err := p.matcher.Match(ctx, query)
	if err != nil {
		p.logger.WarnContext(ctx, "Factor matching degraded",
			"workflow_id", node.WorkflowID, "node_id", node.ID, "error", err)
		otelhelper.SetError(span, err, attribute.String(otelhelper.NodeIDKey, node.ID))

		node.MatchStatus = models.MatchStatusUnmatched
		node.Diagnostic = err.Error()
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("node %s: %v", node.ID, err))

		return
	}

	span.SetAttributes(attribute.Float64(otelhelper.MatchScoreKey, candidates[0].Score))

	models.ApplyFactorMatch(node, candidates[0], p.cfg.Matcher.MinMatchScore)
}

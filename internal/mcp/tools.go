package mcp

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/mesoplan/internal/expand"
	"github.com/meltforce/mesoplan/internal/lifecycle"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/planerr"
)

// --- Tool definitions ---

var toolListMesocycles = mcp.NewTool("list_mesocycles",
	mcp.WithDescription("List mesocycles as summaries (no day/exercise tree). Archived plans are hidden unless include_archived is set."),
	mcp.WithString("coach_id", mcp.Description("Only plans authored by this coach (UUID)")),
	mcp.WithBoolean("include_archived", mcp.Description("Include archived plans. Defaults to false.")),
	mcp.WithBoolean("templates_only", mcp.Description("Only unassigned templates. Defaults to false.")),
)

var toolGetMesocycle = mcp.NewTool("get_mesocycle",
	mcp.WithDescription("Get one mesocycle with its full tree: microcycles, days, exercises and every prescribed set (reps, RIR, rest, load, AMRAP)."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Mesocycle UUID")),
)

var toolGetMacrocycle = mcp.NewTool("get_macrocycle",
	mcp.WithDescription("Get a student's macrocycle with all of its mesocycles in order."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Macrocycle UUID")),
)

var toolListStudentPlans = mcp.NewTool("list_student_plans",
	mcp.WithDescription("List the plans a student can see: published, active and completed mesocycles assigned to them."),
	mcp.WithString("student_id", mcp.Required(), mcp.Description("Student UUID")),
)

var toolPreviewExpansion = mcp.NewTool("preview_expansion",
	mcp.WithDescription("Expand a mesocycle template written in YAML into the concrete plan without storing it. Use it to check set counts, deload placement and dates before authoring."),
	mcp.WithString("template_yaml", mcp.Required(), mcp.Description("Template document: name, microcycle_count, deload_indices, days[].exercises[].set_groups[]")),
)

// --- Tool handlers ---

func (h *handlers) listMesocycles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := models.MesocycleFilter{
		Statuses:      lifecycle.CoachStatuses(req.GetBool("include_archived", false)),
		TemplatesOnly: req.GetBool("templates_only", false),
	}
	if raw := req.GetString("coach_id", ""); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return mcp.NewToolResultError("invalid coach_id: " + raw), nil
		}
		f.CoachID = &id
	}

	list, err := h.ds.ListMesocycles(ctx, f)
	if err != nil {
		h.log.Error("mcp list_mesocycles", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(list)
}

func (h *handlers) getMesocycle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req, "id")
	if errResult != nil {
		return errResult, nil
	}
	m, err := h.ds.GetMesocycle(ctx, id)
	if err != nil {
		return h.queryError("get_mesocycle", err), nil
	}
	return jsonResult(m)
}

func (h *handlers) getMacrocycle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req, "id")
	if errResult != nil {
		return errResult, nil
	}
	m, err := h.ds.GetMacrocycle(ctx, id)
	if err != nil {
		return h.queryError("get_macrocycle", err), nil
	}
	return jsonResult(m)
}

func (h *handlers) listStudentPlans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requireID(req, "student_id")
	if errResult != nil {
		return errResult, nil
	}
	if _, err := h.ds.GetStudent(ctx, id); err != nil {
		return h.queryError("list_student_plans", err), nil
	}
	list, err := h.ds.ListMesocycles(ctx, models.MesocycleFilter{
		StudentID: &id,
		Statuses:  lifecycle.StudentStatuses(),
	})
	if err != nil {
		return h.queryError("list_student_plans", err), nil
	}
	return jsonResult(list)
}

func (h *handlers) previewExpansion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("template_yaml")
	if err != nil {
		return mcp.NewToolResultError("template_yaml parameter is required"), nil
	}
	t, err := expand.DecodeYAML(strings.NewReader(doc))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := expand.Expand(*t, h.expand)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func requireID(req mcp.CallToolRequest, name string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(name)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(name + " parameter is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError("invalid " + name + ": " + raw)
	}
	return id, nil
}

// queryError reports engine errors (not found and the like) to the model as
// is and logs anything else.
func (h *handlers) queryError(tool string, err error) *mcp.CallToolResult {
	if _, ok := planerr.As(err); ok {
		return mcp.NewToolResultError(err.Error())
	}
	h.log.Error("mcp "+tool, "error", err)
	return mcp.NewToolResultError("query failed: " + err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

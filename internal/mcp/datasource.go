package mcp

import (
	"context"

	"github.com/google/uuid"
	"github.com/meltforce/mesoplan/internal/memstore"
	"github.com/meltforce/mesoplan/internal/models"
	"github.com/meltforce/mesoplan/internal/storage"
)

// DataSource abstracts the plan store for MCP tools. *storage.DB and
// *memstore.Store (local) and HTTPClient (remote via REST API) satisfy it.
type DataSource interface {
	ListMesocycles(ctx context.Context, f models.MesocycleFilter) ([]models.MesocycleSummary, error)
	GetMesocycle(ctx context.Context, id uuid.UUID) (*models.Mesocycle, error)
	GetMacrocycle(ctx context.Context, id uuid.UUID) (*models.Macrocycle, error)
	GetStudent(ctx context.Context, id uuid.UUID) (*models.Student, error)
}

var (
	_ DataSource = (*storage.DB)(nil)
	_ DataSource = (*memstore.Store)(nil)
)

package operators

import (
	// Go Internal Packages
	"context"
	"sync"
	"time"

	// Local Packages
	config "bbps-hub/config"
	errors "bbps-hub/errors"
	models "bbps-hub/models"
	utils "bbps-hub/utils"

	// External Packages
	"go.uber.org/zap"
)

const syncTimeout = 30 * time.Second

type Gateway interface {
	Categories(ctx context.Context) ([]map[string]any, error)
	Locations(ctx context.Context) ([]map[string]any, error)
	Operators(ctx context.Context, filters models.OperatorFilters) ([]map[string]any, error)
	OperatorParameters(ctx context.Context, operatorID string) ([]map[string]any, error)
}

type OperatorRepository interface {
	UpsertOperators(ctx context.Context, ops []models.Operator) error
	SetParameters(ctx context.Context, operatorID string, params []models.OperatorParameter, syncedAt time.Time) (bool, error)
	FindOperator(ctx context.Context, operatorID string) (*models.Operator, error)
}

// Directory mirrors the biller's operator catalog locally so bill fetches
// can resolve an operator without a network round trip.
type Directory struct {
	logger        *zap.Logger
	gateway       Gateway
	repo          OperatorRepository
	subCategories config.SubCategories
	now           func() time.Time
	wg            sync.WaitGroup
}

func NewDirectory(logger *zap.Logger, gateway Gateway, repo OperatorRepository, subCategories config.SubCategories) *Directory {
	return &Directory{
		logger:        logger,
		gateway:       gateway,
		repo:          repo,
		subCategories: subCategories,
		now:           time.Now,
	}
}

// Categories returns the active operator categories.
func (d *Directory) Categories(ctx context.Context) ([]models.Category, error) {
	raw, err := d.gateway.Categories(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]models.Category, 0, len(raw))
	for _, c := range raw {
		if utils.ToString(c["status"]) == "1" {
			active = append(active, c)
		}
	}
	return active, nil
}

func (d *Directory) Locations(ctx context.Context) ([]models.Location, error) {
	raw, err := d.gateway.Locations(ctx)
	if err != nil {
		return nil, err
	}
	locations := make([]models.Location, 0, len(raw))
	for _, l := range raw {
		locations = append(locations, models.Location{
			Name:         utils.FirstString(l, "operator_location_name", "location_name", "locationName", "name"),
			ID:           utils.FirstString(l, "operator_location_id", "location_id", "locationId", "id"),
			Abbreviation: utils.FirstString(l, "abbreviation", "abbr"),
		})
	}
	return locations, nil
}

// Operators lists operators from the biller and refreshes the local
// directory in the background. A failed refresh is logged and never fails
// the listing.
func (d *Directory) Operators(ctx context.Context, filters models.OperatorFilters) ([]models.Operator, error) {
	raw, err := d.gateway.Operators(ctx, filters)
	if err != nil {
		return nil, err
	}

	ops := NormalizeOperators(raw, d.now())
	if len(ops) > 0 {
		d.wg.Add(1)
		go d.sync(context.WithoutCancel(ctx), ops)
	}
	return ops, nil
}

// Sync upserts the given upstream operator payloads into the directory.
func (d *Directory) Sync(ctx context.Context, raw []map[string]any) error {
	ops := NormalizeOperators(raw, d.now())
	if len(ops) == 0 {
		return nil
	}
	return d.repo.UpsertOperators(ctx, ops)
}

func (d *Directory) sync(ctx context.Context, ops []models.Operator) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("operator sync panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	if err := d.repo.UpsertOperators(ctx, ops); err != nil {
		d.logger.Error("operator sync failed", zap.Int("count", len(ops)), zap.Error(err))
		return
	}
	d.logger.Debug("operator directory synced", zap.Int("count", len(ops)))
}

// Wait blocks until pending background syncs have finished.
func (d *Directory) Wait() {
	d.wg.Wait()
}

// Parameters fetches the parameter schema of an operator and replaces the
// stored one. Operators missing from the directory are not created.
func (d *Directory) Parameters(ctx context.Context, operatorID string) ([]models.OperatorParameter, error) {
	if operatorID == "" {
		return nil, errors.EmptyParamErr("operatorId")
	}
	raw, err := d.gateway.OperatorParameters(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	params := NormalizeParameters(raw)
	stored, err := d.repo.SetParameters(ctx, operatorID, params, d.now())
	switch {
	case err != nil:
		d.logger.Error("failed to store operator parameters", zap.String("operator_id", operatorID), zap.Error(err))
	case !stored:
		d.logger.Warn("parameters fetched for operator missing from directory", zap.String("operator_id", operatorID))
	}
	return params, nil
}

// Operator looks up a synced operator by its exact upstream id.
func (d *Directory) Operator(ctx context.Context, operatorID string) (*models.Operator, error) {
	if operatorID == "" {
		return nil, errors.EmptyParamErr("operatorId")
	}
	return d.repo.FindOperator(ctx, operatorID)
}

func (d *Directory) SubCategories() models.SubCategoryList {
	return models.SubCategoryList{Version: d.subCategories.Version, Tags: d.subCategories.Names()}
}

// SubCategory lists operators and keeps only those on the allow-list of tag.
func (d *Directory) SubCategory(ctx context.Context, tag string, filters models.OperatorFilters) ([]models.Operator, error) {
	allowed, ok := d.subCategories.Lookup(tag)
	if !ok {
		return nil, errors.NotFoundErr("operator sub-category", tag)
	}
	ops, err := d.Operators(ctx, filters)
	if err != nil {
		return nil, err
	}
	return FilterAllowed(ops, allowed), nil
}

// FilterAllowed keeps the operators whose id is in allowed.
func FilterAllowed(ops []models.Operator, allowed map[string]struct{}) []models.Operator {
	filtered := make([]models.Operator, 0, len(ops))
	for _, op := range ops {
		if _, ok := allowed[op.OperatorID]; ok {
			filtered = append(filtered, op)
		}
	}
	return filtered
}

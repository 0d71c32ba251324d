package operators

import (
	"context"
	"sync"
	"testing"
	"time"

	config "bbps-hub/config"
	errors "bbps-hub/errors"
	models "bbps-hub/models"
	memory "bbps-hub/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGateway struct {
	mu         sync.Mutex
	categories []map[string]any
	locations  []map[string]any
	operators  []map[string]any
	params     map[string][]map[string]any
	err        error
	calls      int
	filters    models.OperatorFilters
}

func (g *fakeGateway) Categories(context.Context) ([]map[string]any, error) {
	return g.categories, g.err
}

func (g *fakeGateway) Locations(context.Context) ([]map[string]any, error) {
	return g.locations, g.err
}

func (g *fakeGateway) Operators(_ context.Context, f models.OperatorFilters) ([]map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.filters = f
	return g.operators, g.err
}

func (g *fakeGateway) OperatorParameters(_ context.Context, id string) ([]map[string]any, error) {
	return g.params[id], g.err
}

type failingRepo struct {
	*memory.Store
}

func (failingRepo) UpsertOperators(context.Context, []models.Operator) error {
	return errors.PersistenceErr("upsert operators", errors.New("connection reset"))
}

var testSubCategories = config.SubCategories{
	Version: "test",
	Tags: map[string][]int{
		"mobile_postpaid": {172, 615, 41, 89, 27, 507, 2995},
		"mobile_prepaid":  {5, 1, 90, 91, 400},
	},
}

func newDirectory(g Gateway, repo OperatorRepository) *Directory {
	d := NewDirectory(zap.NewNop(), g, repo, testSubCategories)
	d.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return d
}

func TestCategoriesKeepsActiveOnly(t *testing.T) {
	g := &fakeGateway{categories: []map[string]any{
		{"operator_category_id": 1.0, "status": "1"},
		{"operator_category_id": 2.0, "status": 1.0},
		{"operator_category_id": 3.0, "status": "0"},
		{"operator_category_id": 4.0},
	}}

	cats, err := newDirectory(g, memory.NewStore()).Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestLocationsAreMapped(t *testing.T) {
	g := &fakeGateway{locations: []map[string]any{
		{"operator_location_name": "Delhi", "operator_location_id": "DL", "abbreviation": "DL"},
		{"name": "Pan India", "id": 0.0},
	}}

	locs, err := newDirectory(g, memory.NewStore()).Locations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Location{
		{Name: "Delhi", ID: "DL", Abbreviation: "DL"},
		{Name: "Pan India", ID: "0"},
	}, locs)
}

func TestOperatorsSyncsDirectory(t *testing.T) {
	store := memory.NewStore()
	g := &fakeGateway{operators: []map[string]any{
		{"operator_id": 172.0, "name": "Jio Postpaid", "operator_category_id": 10.0, "status": "1"},
		{"operatorId": "OP2", "operatorName": "Power Co", "isActive": false},
		{"name": "no id"},
	}}
	d := newDirectory(g, store)

	ops, err := d.Operators(context.Background(), models.OperatorFilters{Category: "10"})
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "10", g.filters.Category)

	d.Wait()

	jio, err := d.Operator(context.Background(), "172")
	require.NoError(t, err)
	assert.Equal(t, "Jio Postpaid", jio.OperatorName)
	assert.Equal(t, "10", jio.Category)
	assert.True(t, jio.IsActive)

	power, err := d.Operator(context.Background(), "OP2")
	require.NoError(t, err)
	assert.False(t, power.IsActive)
}

func TestSyncFailureDoesNotFailListing(t *testing.T) {
	g := &fakeGateway{operators: []map[string]any{{"operator_id": "OP1"}}}
	d := newDirectory(g, failingRepo{memory.NewStore()})

	ops, err := d.Operators(context.Background(), models.OperatorFilters{})
	d.Wait()

	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestOperatorsPropagatesGatewayError(t *testing.T) {
	g := &fakeGateway{err: errors.E(errors.Upstream, "operator down", nil)}

	_, err := newDirectory(g, memory.NewStore()).Operators(context.Background(), models.OperatorFilters{})
	assert.True(t, errors.Is(err, errors.Upstream))
}

func TestOperatorNotFound(t *testing.T) {
	_, err := newDirectory(&fakeGateway{}, memory.NewStore()).Operator(context.Background(), "OP404")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestParametersReplaceStoredSchema(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.UpsertOperators(ctx, []models.Operator{{OperatorID: "OP1"}}))

	g := &fakeGateway{params: map[string][]map[string]any{
		"OP1": {
			{"param_name": "consumer_number", "param_label": "Consumer Number", "param_type": "Numeric", "regex": "^[0-9]{5,12}$"},
			{"name": "cycle", "type": "DROPDOWN", "options": []any{"A", "B"}, "is_optional": true},
		},
	}}
	d := newDirectory(g, store)

	params, err := d.Parameters(ctx, "OP1")
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, models.ParamNumber, params[0].Type)
	assert.Equal(t, "^[0-9]{5,12}$", params[0].Validation.Pattern)
	assert.Equal(t, []string{"A", "B"}, params[1].Options)
	assert.False(t, params[1].Required)

	g.params["OP1"] = []map[string]any{{"name": "account", "required": true}}
	_, err = d.Parameters(ctx, "OP1")
	require.NoError(t, err)

	op, err := store.FindOperator(ctx, "OP1")
	require.NoError(t, err)
	require.Len(t, op.Parameters, 1)
	assert.Equal(t, "account", op.Parameters[0].Name)
	assert.True(t, op.Parameters[0].Required)
}

func TestParametersDoNotCreateOperators(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	g := &fakeGateway{params: map[string][]map[string]any{"OP9": {{"name": "account"}}}}

	params, err := newDirectory(g, store).Parameters(ctx, "OP9")
	require.NoError(t, err)
	assert.Len(t, params, 1)

	_, err = store.FindOperator(ctx, "OP9")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestSubCategoryUsesAllowList(t *testing.T) {
	g := &fakeGateway{operators: []map[string]any{
		{"operator_id": 172.0, "name": "Jio Postpaid"},
		{"operator_id": "41", "name": "Airtel Postpaid"},
		{"operator_id": 999.0, "name": "Other Postpaid"},
		{"operator_id": 5.0, "name": "Airtel Prepaid"},
	}}
	d := newDirectory(g, memory.NewStore())

	postpaid, err := d.SubCategory(context.Background(), "mobile_postpaid", models.OperatorFilters{})
	require.NoError(t, err)
	ids := []string{}
	for _, op := range postpaid {
		ids = append(ids, op.OperatorID)
	}
	assert.Equal(t, []string{"172", "41"}, ids)

	prepaid, err := d.SubCategory(context.Background(), "mobile_prepaid", models.OperatorFilters{})
	require.NoError(t, err)
	require.Len(t, prepaid, 1)
	assert.Equal(t, "5", prepaid[0].OperatorID)
	d.Wait()
}

func TestUnknownSubCategoryIsNotFound(t *testing.T) {
	g := &fakeGateway{}
	_, err := newDirectory(g, memory.NewStore()).SubCategory(context.Background(), "dth", models.OperatorFilters{})
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.Zero(t, g.calls)
}

func TestSubCategoriesListsConfiguredTags(t *testing.T) {
	list := newDirectory(&fakeGateway{}, memory.NewStore()).SubCategories()
	assert.Equal(t, "test", list.Version)
	assert.Equal(t, []string{"mobile_postpaid", "mobile_prepaid"}, list.Tags)
}

package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sells-group/pim-enrich/internal/model"
	"github.com/sells-group/pim-enrich/internal/resilience"
	"github.com/sells-group/pim-enrich/pkg/akeneo"
)

type mockClient struct{ mock.Mock }

func (m *mockClient) GetProduct(ctx context.Context, uuid string) (*akeneo.Product, error) {
	args := m.Called(ctx, uuid)
	p, _ := args.Get(0).(*akeneo.Product)
	return p, args.Error(1)
}

func (m *mockClient) PatchProduct(ctx context.Context, uuid string, patch akeneo.ProductPatch) error {
	return m.Called(ctx, uuid, patch).Error(0)
}

func (m *mockClient) GetFamily(ctx context.Context, code string) (*akeneo.Family, error) {
	args := m.Called(ctx, code)
	f, _ := args.Get(0).(*akeneo.Family)
	return f, args.Error(1)
}

func (m *mockClient) GetAttribute(ctx context.Context, code string) (*akeneo.Attribute, error) {
	args := m.Called(ctx, code)
	a, _ := args.Get(0).(*akeneo.Attribute)
	return a, args.Error(1)
}

func (m *mockClient) ListAttributeOptions(ctx context.Context, code string) ([]akeneo.AttributeOption, error) {
	args := m.Called(ctx, code)
	o, _ := args.Get(0).([]akeneo.AttributeOption)
	return o, args.Error(1)
}

func fastRetry() Option {
	return WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond})
}

func strPtr(s string) *string { return &s }

func TestFetchRecord_ConvertsValues(t *testing.T) {
	t.Parallel()

	mc := &mockClient{}
	mc.On("GetProduct", mock.Anything, "p-1").Return(&akeneo.Product{
		UUID: "p-1", Identifier: "SKU", Family: "shirts",
		Values: map[string][]akeneo.Value{
			"name":   {{Locale: strPtr("en_US"), Data: "Shirt"}},
			"weight": {{Data: "1"}},
		},
	}, nil)

	p, err := New(mc).FetchRecord(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "shirts", p.Family)
	assert.Equal(t, []model.ValueSlot{{Locale: "en_US", Data: "Shirt"}}, p.Values["name"])
	assert.Equal(t, []model.ValueSlot{{Data: "1"}}, p.Values["weight"])
}

func TestFetchRecord_RetriesTransient(t *testing.T) {
	t.Parallel()

	mc := &mockClient{}
	mc.On("GetProduct", mock.Anything, "p-1").
		Return(nil, &akeneo.StatusError{StatusCode: http.StatusServiceUnavailable}).Once()
	mc.On("GetProduct", mock.Anything, "p-1").Return(&akeneo.Product{UUID: "p-1"}, nil).Once()

	p, err := New(mc, fastRetry()).FetchRecord(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.UUID)
	mc.AssertNumberOfCalls(t, "GetProduct", 2)
}

func TestFetchAttributeDefinition(t *testing.T) {
	t.Parallel()

	mc := &mockClient{}
	mc.On("GetAttribute", mock.Anything, "color").Return(&akeneo.Attribute{
		Code: "color", Type: "pim_catalog_simpleselect", Localizable: false, Scopable: true,
		Labels: map[string]string{"en_US": "Color"},
	}, nil)
	mc.On("ListAttributeOptions", mock.Anything, "color").Return([]akeneo.AttributeOption{
		{Code: "red", Labels: map[string]string{"en_US": "Red"}},
	}, nil)

	g := New(mc)
	def, err := g.FetchAttributeDefinition(context.Background(), "color")
	require.NoError(t, err)
	assert.Equal(t, model.ValueTypeSingleSelect, def.ValueType)
	assert.True(t, def.Scopable)
	assert.Equal(t, "Color", def.DisplayLabel("en_US"))

	opts, err := g.FetchAttributeOptions(context.Background(), "color")
	require.NoError(t, err)
	assert.Equal(t, []model.Option{{Code: "red", Labels: model.Labels{"en_US": "Red"}}}, opts)
}

func TestUpdateRecord_EncodesNullSlots(t *testing.T) {
	t.Parallel()

	mc := &mockClient{}
	mc.On("PatchProduct", mock.Anything, "p-1", mock.MatchedBy(func(p akeneo.ProductPatch) bool {
		vs := p.Values["name"]
		return len(vs) == 2 && vs[0].Locale != nil && *vs[0].Locale == "en_US" && vs[0].Scope == nil &&
			vs[1].Locale == nil && vs[1].Data == "x"
	})).Return(nil)

	err := New(mc).UpdateRecord(context.Background(), "p-1", model.UpdatePayload{
		"name": {{Locale: "en_US", Data: "Shirt"}, {Data: "x"}},
	})
	require.NoError(t, err)
	mc.AssertExpectations(t)
}

func TestUpdateRecord_ClassifiesStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		kind   model.ErrorKind
	}{
		{http.StatusPreconditionFailed, model.KindConflict},
		{http.StatusUnprocessableEntity, model.KindValidation},
		{http.StatusUnauthorized, model.KindAuth},
		{http.StatusForbidden, model.KindAuth},
		{http.StatusInternalServerError, model.KindTransport},
		{http.StatusNotFound, model.KindTransport},
	}
	for _, tt := range tests {
		mc := &mockClient{}
		mc.On("PatchProduct", mock.Anything, "p-1", mock.Anything).
			Return(&akeneo.StatusError{Method: "PATCH", StatusCode: tt.status})

		err := New(mc).UpdateRecord(context.Background(), "p-1", model.UpdatePayload{})
		require.Error(t, err)
		assert.Equal(t, tt.kind, model.KindOf(err), tt.status)
		mc.AssertNumberOfCalls(t, "PatchProduct", 1)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Classify(nil))
	assert.Equal(t, model.KindTransport, model.KindOf(Classify(errors.New("dial tcp: refused"))))

	tokenErr := &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}}
	assert.Equal(t, model.KindAuth, model.KindOf(Classify(tokenErr)))

	already := model.NewError(model.KindConflict, "", nil)
	assert.Same(t, already, Classify(already))

	err := Classify(&akeneo.StatusError{StatusCode: http.StatusPreconditionFailed})
	assert.Equal(t, "The product was modified by another user. Please refresh and try again.", model.UserMessage(err))
}

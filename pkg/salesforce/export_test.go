package salesforce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/crestfund/lead-crm/internal/model"
)

// MockClient is a testify mock for the Client interface.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	return args.Error(0)
}

func (m *MockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}

func (m *MockClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	args := m.Called(ctx, sObjectName, id, fields)
	return args.Error(0)
}

func fundedConversation(id, business string) model.Conversation {
	return model.Conversation{
		ID:           id,
		BusinessName: business,
		Phone:        "5551234567",
		OwnerName:    "Maria Santos",
		State:        model.StateFunded,
	}
}

func TestPushFunded_CreatesNewLead(t *testing.T) {
	ctx := context.Background()
	mc := new(MockClient)

	mc.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(nil).Once()
	mc.On("InsertOne", ctx, "Lead", mock.MatchedBy(func(record map[string]any) bool {
		return record["Company"] == "Harbor Deli LLC" &&
			record["LastName"] == "Santos" &&
			record["FirstName"] == "Maria" &&
			record[externalIDField] == "conv-1"
	})).Return("sf-lead-1", nil).Once()

	res, err := NewExporter(mc).PushFunded(ctx, []model.Conversation{
		fundedConversation("conv-1", "Harbor Deli LLC"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Updated)
	mc.AssertExpectations(t)
}

func TestPushFunded_UpdatesExistingLead(t *testing.T) {
	ctx := context.Background()
	mc := new(MockClient)

	mc.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			out := args.Get(2).(*[]leadRecord)
			*out = []leadRecord{{ID: "sf-lead-9"}}
		}).Return(nil).Once()
	mc.On("UpdateOne", ctx, "Lead", "sf-lead-9", mock.Anything).Return(nil).Once()

	res, err := NewExporter(mc).PushFunded(ctx, []model.Conversation{
		fundedConversation("conv-1", "Harbor Deli LLC"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	mc.AssertExpectations(t)
}

func TestPushFunded_SkipsUnfunded(t *testing.T) {
	mc := new(MockClient)

	conv := fundedConversation("conv-1", "Harbor Deli LLC")
	conv.State = model.StateQualified

	res, err := NewExporter(mc).PushFunded(context.Background(), []model.Conversation{conv})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created+res.Updated+res.Failed)
	mc.AssertNotCalled(t, "Query")
}

func TestPushFunded_RecordFailureCountedNotFatal(t *testing.T) {
	ctx := context.Background()
	mc := new(MockClient)

	mc.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(assert.AnError).Once()
	mc.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(nil).Once()
	mc.On("InsertOne", ctx, "Lead", mock.Anything).Return("sf-lead-2", nil).Once()

	res, err := NewExporter(mc).PushFunded(ctx, []model.Conversation{
		fundedConversation("conv-1", "Harbor Deli LLC"),
		fundedConversation("conv-2", "Acme LLC"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Created)
}

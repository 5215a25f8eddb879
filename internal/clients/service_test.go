package clients

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	clients      map[int64]*Client
	interactions map[int64]*InteractionLog
	nextID       int64
	nextLogID    int64

	paid     map[int64]decimal.Decimal
	sessions map[int64][]SessionSummary
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		clients:      make(map[int64]*Client),
		interactions: make(map[int64]*InteractionLog),
		nextID:       1,
		nextLogID:    1,
		paid:         make(map[int64]decimal.Decimal),
		sessions:     make(map[int64][]SessionSummary),
	}
}

func (m *mockRepository) nameTaken(name string, excludeID int64) bool {
	for _, c := range m.clients {
		if c.Name == name && c.ID != excludeID {
			return true
		}
	}
	return false
}

func (m *mockRepository) Create(ctx context.Context, client Client) (int64, error) {
	if m.nameTaken(client.Name, 0) {
		return 0, ErrNameTaken
	}
	id := m.nextID
	m.nextID++
	client.ID = id
	m.clients[id] = &client
	return id, nil
}

func (m *mockRepository) Update(ctx context.Context, client Client) error {
	if _, ok := m.clients[client.ID]; !ok {
		return ErrNotFound
	}
	if m.nameTaken(client.Name, client.ID) {
		return ErrNameTaken
	}
	copied := client
	m.clients[client.ID] = &copied
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *mockRepository) GetByName(ctx context.Context, name string) (*Client, error) {
	for _, c := range m.clients {
		if c.Name == name {
			copied := *c
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter) ([]Client, error) {
	var out []Client
	for _, c := range m.clients {
		if filter.LeadSource != "" && c.LeadSource != filter.LeadSource {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockRepository) AddInteraction(ctx context.Context, log InteractionLog) (int64, error) {
	id := m.nextLogID
	m.nextLogID++
	log.ID = id
	m.interactions[id] = &log
	return id, nil
}

func (m *mockRepository) ListInteractions(ctx context.Context, clientID int64) ([]InteractionLog, error) {
	var out []InteractionLog
	for _, l := range m.interactions {
		if l.ClientID == clientID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *mockRepository) GetInteraction(ctx context.Context, id int64) (*InteractionLog, error) {
	l, ok := m.interactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *l
	return &copied, nil
}

func (m *mockRepository) DeleteInteraction(ctx context.Context, id int64) error {
	if _, ok := m.interactions[id]; !ok {
		return ErrNotFound
	}
	delete(m.interactions, id)
	return nil
}

func (m *mockRepository) Sessions(ctx context.Context, clientID int64) ([]SessionSummary, error) {
	return m.sessions[clientID], nil
}

func (m *mockRepository) TotalPaid(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, v := range m.paid {
		total = total.Add(v)
	}
	return total, nil
}

func (m *mockRepository) PaidBySession(ctx context.Context, clientID int64) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal, len(m.paid))
	for k, v := range m.paid {
		out[k] = v
	}
	return out, nil
}

var _ Repository = (*mockRepository)(nil)

func TestServiceCreateNormalizesFields(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	id, err := service.Create(context.Background(), Client{
		Name:         "  Maria Silva ",
		AddressState: " sp ",
	})
	require.NoError(t, err)

	stored := repo.clients[id]
	assert.Equal(t, "Maria Silva", stored.Name)
	assert.Equal(t, "SP", stored.AddressState)
}

func TestServiceCreateDuplicateName(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	_, err := service.Create(context.Background(), Client{Name: "Maria Silva"})
	require.NoError(t, err)

	_, err = service.Create(context.Background(), Client{Name: "Maria Silva"})
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestServiceDetailByName(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	id, err := service.Create(context.Background(), Client{Name: "Maria Silva"})
	require.NoError(t, err)

	_, err = service.AddInteraction(context.Background(), InteractionLog{
		ClientID: id,
		Channel:  "WhatsApp",
		Notes:    "asked about newborn packages",
	})
	require.NoError(t, err)

	repo.paid[11] = decimal.RequireFromString("300.00")
	repo.paid[12] = decimal.RequireFromString("150.00")
	repo.sessions[id] = []SessionSummary{
		{ID: 11, Code: "240301_MARIA_NB_11", TypeName: "Newborn"},
		{ID: 12, Code: "240420_MARIA_FAM_12", TypeName: "Family"},
	}

	detail, err := service.DetailByName(context.Background(), "Maria Silva")
	require.NoError(t, err)
	assert.Len(t, detail.Sessions, 2)
	assert.Len(t, detail.Interactions, 1)
	assert.True(t, detail.TotalPaid.Equal(decimal.RequireFromString("450.00")))
	assert.True(t, detail.PaidAmounts[11].Equal(decimal.RequireFromString("300.00")))
}

func TestServiceDetailByNameMissing(t *testing.T) {
	service := NewService(newMockRepository())
	_, err := service.DetailByName(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceAddInteractionDefaultsDate(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)
	today := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return today }

	id, err := service.Create(context.Background(), Client{Name: "Maria Silva"})
	require.NoError(t, err)

	logID, err := service.AddInteraction(context.Background(), InteractionLog{
		ClientID: id,
		Channel:  "Email",
		Notes:    "sent the contract",
	})
	require.NoError(t, err)
	assert.Equal(t, today, repo.interactions[logID].Date)
}

func TestServiceAddInteractionUnknownClient(t *testing.T) {
	service := NewService(newMockRepository())
	_, err := service.AddInteraction(context.Background(), InteractionLog{ClientID: 99, Channel: "Phone", Notes: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDeleteInteractionReturnsOwner(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo)

	id, err := service.Create(context.Background(), Client{Name: "Maria Silva"})
	require.NoError(t, err)
	logID, err := service.AddInteraction(context.Background(), InteractionLog{ClientID: id, Channel: "Phone", Notes: "x"})
	require.NoError(t, err)

	owner, err := service.DeleteInteraction(context.Background(), logID)
	require.NoError(t, err)
	assert.Equal(t, "Maria Silva", owner.Name)
	assert.Empty(t, repo.interactions)
}

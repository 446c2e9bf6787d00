package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"pricecompare/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// Mock repository and cache

type MockNodeRepository struct {
	mock.Mock
}

func (m *MockNodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Node, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Node), args.Error(1)
}

func (m *MockNodeRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Node, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*models.Node), args.Error(1)
}

func (m *MockNodeRepository) GetWithAncestors(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Node, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*models.Node), args.Error(1)
}

func (m *MockNodeRepository) GetSubtree(ctx context.Context, rootID uuid.UUID) ([]*models.Node, error) {
	args := m.Called(ctx, rootID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Node), args.Error(1)
}

func (m *MockNodeRepository) UpsertAll(ctx context.Context, nodes []*models.Node) error {
	args := m.Called(ctx, nodes)
	return args.Error(0)
}

func (m *MockNodeRepository) DeleteCascade(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNodeRepository) CountByKind(ctx context.Context) (map[models.NodeKind]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.NodeKind]int64), args.Error(1)
}

func (m *MockNodeRepository) CountOrphans(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetNodeTree(ctx context.Context, nodeID uuid.UUID) (*models.NodeTree, error) {
	args := m.Called(ctx, nodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NodeTree), args.Error(1)
}

func (m *MockCacheService) SetNodeTree(ctx context.Context, tree *models.NodeTree, ttl time.Duration) error {
	args := m.Called(ctx, tree, ttl)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateTrees(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) GetCatalogStats(ctx context.Context) (*models.CatalogStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CatalogStats), args.Error(1)
}

func (m *MockCacheService) SetCatalogStats(ctx context.Context, stats *models.CatalogStats, ttl time.Duration) error {
	args := m.Called(ctx, stats, ttl)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func int64Ptr(v int64) *int64 {
	return &v
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

type ImportServiceTestSuite struct {
	suite.Suite
	repo       *MockNodeRepository
	cache      *MockCacheService
	service    ImportService
	updateDate time.Time
	ctx        context.Context
}

func (s *ImportServiceTestSuite) SetupTest() {
	s.repo = new(MockNodeRepository)
	s.cache = new(MockCacheService)
	s.service = NewImportService(s.repo, s.cache, nil)
	s.updateDate = time.Date(2022, 10, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = context.Background()
}

func TestImportServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ImportServiceTestSuite))
}

func (s *ImportServiceTestSuite) batch(items ...*models.ImportItem) *models.ImportBatch {
	return &models.ImportBatch{Items: items, UpdateDate: s.updateDate}
}

func (s *ImportServiceTestSuite) TestImport_NewCategoryWithOffers() {
	categoryID := uuid.New()
	offerID := uuid.New()
	items := s.batch(
		&models.ImportItem{ID: offerID, Name: "phone", Kind: models.KindOffer, Price: int64Ptr(100), ParentID: uuidPtr(categoryID)},
		&models.ImportItem{ID: categoryID, Name: "goods", Kind: models.KindCategory},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(map[uuid.UUID]*models.Node{}, nil)
	s.repo.On("UpsertAll", s.ctx, mock.MatchedBy(func(nodes []*models.Node) bool {
		// parent must precede child regardless of batch order
		return len(nodes) == 2 && nodes[0].ID == categoryID && nodes[1].ID == offerID
	})).Return(nil)
	s.cache.On("InvalidateTrees", s.ctx).Return(nil)

	err := s.service.Import(s.ctx, items)
	assert.NoError(s.T(), err)
	s.repo.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func (s *ImportServiceTestSuite) TestImport_StampsSharedUpdateDate() {
	offerID := uuid.New()
	items := s.batch(
		&models.ImportItem{ID: offerID, Name: "phone", Kind: models.KindOffer, Price: int64Ptr(100)},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(map[uuid.UUID]*models.Node{}, nil)
	s.repo.On("UpsertAll", s.ctx, mock.MatchedBy(func(nodes []*models.Node) bool {
		return len(nodes) == 1 && nodes[0].UpdatedAt.Equal(s.updateDate)
	})).Return(nil)
	s.cache.On("InvalidateTrees", s.ctx).Return(nil)

	err := s.service.Import(s.ctx, items)
	assert.NoError(s.T(), err)
}

func (s *ImportServiceTestSuite) TestImport_DuplicateID() {
	id := uuid.New()
	items := s.batch(
		&models.ImportItem{ID: id, Name: "a", Kind: models.KindCategory},
		&models.ImportItem{ID: id, Name: "b", Kind: models.KindCategory},
	)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrDuplicateID)
	s.repo.AssertNotCalled(s.T(), "UpsertAll", mock.Anything, mock.Anything)
	s.repo.AssertNotCalled(s.T(), "GetWithAncestors", mock.Anything, mock.Anything)
}

func (s *ImportServiceTestSuite) TestImport_CategoryWithPrice() {
	items := s.batch(
		&models.ImportItem{ID: uuid.New(), Name: "cat", Kind: models.KindCategory, Price: int64Ptr(10)},
	)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrInvalidPrice)
	s.repo.AssertNotCalled(s.T(), "UpsertAll", mock.Anything, mock.Anything)
}

func (s *ImportServiceTestSuite) TestImport_OfferWithoutPrice() {
	items := s.batch(
		&models.ImportItem{ID: uuid.New(), Name: "offer", Kind: models.KindOffer},
	)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrInvalidPrice)
}

func (s *ImportServiceTestSuite) TestImport_NegativePrice() {
	items := s.batch(
		&models.ImportItem{ID: uuid.New(), Name: "offer", Kind: models.KindOffer, Price: int64Ptr(-1)},
	)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrInvalidPrice)
}

func (s *ImportServiceTestSuite) TestImport_UnknownParent() {
	items := s.batch(
		&models.ImportItem{ID: uuid.New(), Name: "offer", Kind: models.KindOffer, Price: int64Ptr(5), ParentID: uuidPtr(uuid.New())},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(map[uuid.UUID]*models.Node{}, nil)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrUnknownParent)
	s.repo.AssertNotCalled(s.T(), "UpsertAll", mock.Anything, mock.Anything)
}

func (s *ImportServiceTestSuite) TestImport_ParentIsOffer() {
	parentID := uuid.New()
	items := s.batch(
		&models.ImportItem{ID: uuid.New(), Name: "offer", Kind: models.KindOffer, Price: int64Ptr(5), ParentID: uuidPtr(parentID)},
	)

	existing := map[uuid.UUID]*models.Node{
		parentID: {ID: parentID, Name: "existing offer", Kind: models.KindOffer, Price: int64Ptr(1)},
	}
	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(existing, nil)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrInvalidParentType)
}

func (s *ImportServiceTestSuite) TestImport_InBatchParentIsOffer() {
	parentID := uuid.New()
	items := s.batch(
		&models.ImportItem{ID: parentID, Name: "leaf", Kind: models.KindOffer, Price: int64Ptr(1)},
		&models.ImportItem{ID: uuid.New(), Name: "child", Kind: models.KindOffer, Price: int64Ptr(5), ParentID: uuidPtr(parentID)},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(map[uuid.UUID]*models.Node{}, nil)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrInvalidParentType)
}

func (s *ImportServiceTestSuite) TestImport_TypeChangeRejected() {
	id := uuid.New()
	items := s.batch(
		&models.ImportItem{ID: id, Name: "now a category", Kind: models.KindCategory},
	)

	existing := map[uuid.UUID]*models.Node{
		id: {ID: id, Name: "was an offer", Kind: models.KindOffer, Price: int64Ptr(10)},
	}
	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(existing, nil)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrTypeImmutable)
	s.repo.AssertNotCalled(s.T(), "UpsertAll", mock.Anything, mock.Anything)
}

func (s *ImportServiceTestSuite) TestImport_SelfParentRejected() {
	id := uuid.New()
	items := s.batch(
		&models.ImportItem{ID: id, Name: "self", Kind: models.KindCategory, ParentID: uuidPtr(id)},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(map[uuid.UUID]*models.Node{}, nil)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrCycle)
}

func (s *ImportServiceTestSuite) TestImport_InBatchMutualParentsRejected() {
	a := uuid.New()
	b := uuid.New()
	items := s.batch(
		&models.ImportItem{ID: a, Name: "a", Kind: models.KindCategory, ParentID: uuidPtr(b)},
		&models.ImportItem{ID: b, Name: "b", Kind: models.KindCategory, ParentID: uuidPtr(a)},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(map[uuid.UUID]*models.Node{}, nil)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrCycle)
}

func (s *ImportServiceTestSuite) TestImport_ReparentUnderOwnDescendantRejected() {
	parentID := uuid.New()
	childID := uuid.New()
	// persisted: child under parent; the batch tries to hang parent below child
	existing := map[uuid.UUID]*models.Node{
		parentID: {ID: parentID, Name: "root", Kind: models.KindCategory},
		childID:  {ID: childID, Name: "child", Kind: models.KindCategory, ParentID: uuidPtr(parentID)},
	}
	items := s.batch(
		&models.ImportItem{ID: parentID, Name: "root", Kind: models.KindCategory, ParentID: uuidPtr(childID)},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(existing, nil)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrCycle)
}

func (s *ImportServiceTestSuite) TestImport_CycleAmongAncestorsRejected() {
	// persisted: e1 under e2; the batch makes e2 a child of a and a a child
	// of e1, closing a loop that an unrelated entry's ancestor walk crosses
	a := uuid.New()
	e1 := uuid.New()
	e2 := uuid.New()
	leaf := uuid.New()
	existing := map[uuid.UUID]*models.Node{
		e1: {ID: e1, Name: "e1", Kind: models.KindCategory, ParentID: uuidPtr(e2)},
		e2: {ID: e2, Name: "e2", Kind: models.KindCategory},
	}
	items := s.batch(
		&models.ImportItem{ID: a, Name: "a", Kind: models.KindCategory, ParentID: uuidPtr(e1)},
		&models.ImportItem{ID: e2, Name: "e2", Kind: models.KindCategory, ParentID: uuidPtr(a)},
		&models.ImportItem{ID: leaf, Name: "leaf", Kind: models.KindOffer, Price: int64Ptr(1), ParentID: uuidPtr(e1)},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(existing, nil)

	err := s.service.Import(s.ctx, items)
	assert.ErrorIs(s.T(), err, ErrCycle)
	s.repo.AssertNotCalled(s.T(), "UpsertAll", mock.Anything, mock.Anything)
}

func (s *ImportServiceTestSuite) TestImport_DeepChainResolvesParentFirst() {
	// grandparent <- parent <- child, supplied in reverse order
	grandID := uuid.New()
	parentID := uuid.New()
	childID := uuid.New()
	items := s.batch(
		&models.ImportItem{ID: childID, Name: "child", Kind: models.KindOffer, Price: int64Ptr(3), ParentID: uuidPtr(parentID)},
		&models.ImportItem{ID: parentID, Name: "parent", Kind: models.KindCategory, ParentID: uuidPtr(grandID)},
		&models.ImportItem{ID: grandID, Name: "grand", Kind: models.KindCategory},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(map[uuid.UUID]*models.Node{}, nil)
	s.repo.On("UpsertAll", s.ctx, mock.MatchedBy(func(nodes []*models.Node) bool {
		pos := make(map[uuid.UUID]int, len(nodes))
		for i, n := range nodes {
			pos[n.ID] = i
		}
		return len(nodes) == 3 && pos[grandID] < pos[parentID] && pos[parentID] < pos[childID]
	})).Return(nil)
	s.cache.On("InvalidateTrees", s.ctx).Return(nil)

	err := s.service.Import(s.ctx, items)
	assert.NoError(s.T(), err)
	s.repo.AssertExpectations(s.T())
}

func (s *ImportServiceTestSuite) TestImport_ReparentToExistingCategory() {
	nodeID := uuid.New()
	newParentID := uuid.New()
	existing := map[uuid.UUID]*models.Node{
		nodeID:      {ID: nodeID, Name: "offer", Kind: models.KindOffer, Price: int64Ptr(7)},
		newParentID: {ID: newParentID, Name: "category", Kind: models.KindCategory},
	}
	items := s.batch(
		&models.ImportItem{ID: nodeID, Name: "offer", Kind: models.KindOffer, Price: int64Ptr(7), ParentID: uuidPtr(newParentID)},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(existing, nil)
	s.repo.On("UpsertAll", s.ctx, mock.MatchedBy(func(nodes []*models.Node) bool {
		return len(nodes) == 1 && nodes[0].ID == nodeID &&
			nodes[0].ParentID != nil && *nodes[0].ParentID == newParentID
	})).Return(nil)
	s.cache.On("InvalidateTrees", s.ctx).Return(nil)

	err := s.service.Import(s.ctx, items)
	assert.NoError(s.T(), err)
}

func (s *ImportServiceTestSuite) TestImport_UpsertFailurePropagates() {
	items := s.batch(
		&models.ImportItem{ID: uuid.New(), Name: "offer", Kind: models.KindOffer, Price: int64Ptr(1)},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.Anything).Return(map[uuid.UUID]*models.Node{}, nil)
	s.repo.On("UpsertAll", s.ctx, mock.Anything).Return(errors.New("constraint violation"))

	err := s.service.Import(s.ctx, items)
	assert.Error(s.T(), err)
	assert.False(s.T(), IsValidationError(err))
	s.cache.AssertNotCalled(s.T(), "InvalidateTrees", mock.Anything)
}

func (s *ImportServiceTestSuite) TestImport_PrefetchIncludesExternalParentIDs() {
	parentID := uuid.New()
	offerID := uuid.New()
	existing := map[uuid.UUID]*models.Node{
		parentID: {ID: parentID, Name: "category", Kind: models.KindCategory},
	}
	items := s.batch(
		&models.ImportItem{ID: offerID, Name: "offer", Kind: models.KindOffer, Price: int64Ptr(1), ParentID: uuidPtr(parentID)},
	)

	s.repo.On("GetWithAncestors", s.ctx, mock.MatchedBy(func(ids []uuid.UUID) bool {
		seen := make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			seen[id] = true
		}
		return seen[offerID] && seen[parentID]
	})).Return(existing, nil)
	s.repo.On("UpsertAll", s.ctx, mock.Anything).Return(nil)
	s.cache.On("InvalidateTrees", s.ctx).Return(nil)

	err := s.service.Import(s.ctx, items)
	assert.NoError(s.T(), err)
	s.repo.AssertExpectations(s.T())
}

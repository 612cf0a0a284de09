package db

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/models"
)

// MemoryStore хранилище в памяти процесса. Используется в тестах и при STORAGE=memory.
// Транзакция держит общий мьютекс и при ошибке восстанавливает снимок данных.
type MemoryStore struct {
	mu sync.Mutex

	ads       map[uuid.UUID]models.Ad
	proposals map[uuid.UUID]models.ExchangeProposal
	users     map[uuid.UUID]models.User
	telegram  map[int64]uuid.UUID
	favorites map[uuid.UUID]models.Favorite

	// порядок вставки для детерминированной сортировки при равном времени
	seq  map[uuid.UUID]uint64
	next uint64
}

type memoryTxKey struct{}

// NewMemoryStore создаёт пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ads:       make(map[uuid.UUID]models.Ad),
		proposals: make(map[uuid.UUID]models.ExchangeProposal),
		users:     make(map[uuid.UUID]models.User),
		telegram:  make(map[int64]uuid.UUID),
		favorites: make(map[uuid.UUID]models.Favorite),
		seq:       make(map[uuid.UUID]uint64),
	}
}

var _ Store = (*MemoryStore)(nil)

// lock захватывает мьютекс, если ctx не принадлежит транзакции этого хранилища
func (m *MemoryStore) lock(ctx context.Context) func() {
	if owner, _ := ctx.Value(memoryTxKey{}).(*MemoryStore); owner == m {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

type memorySnapshot struct {
	ads       map[uuid.UUID]models.Ad
	proposals map[uuid.UUID]models.ExchangeProposal
	users     map[uuid.UUID]models.User
	telegram  map[int64]uuid.UUID
	favorites map[uuid.UUID]models.Favorite
	seq       map[uuid.UUID]uint64
	next      uint64
}

func (m *MemoryStore) snapshot() memorySnapshot {
	return memorySnapshot{
		ads:       maps.Clone(m.ads),
		proposals: maps.Clone(m.proposals),
		users:     maps.Clone(m.users),
		telegram:  maps.Clone(m.telegram),
		favorites: maps.Clone(m.favorites),
		seq:       maps.Clone(m.seq),
		next:      m.next,
	}
}

func (m *MemoryStore) restore(s memorySnapshot) {
	m.ads = s.ads
	m.proposals = s.proposals
	m.users = s.users
	m.telegram = s.telegram
	m.favorites = s.favorites
	m.seq = s.seq
	m.next = s.next
}

// ExecTx выполняет fn под общим мьютексом. При ошибке изменения откатываются.
func (m *MemoryStore) ExecTx(ctx context.Context, fn TxFn) error {
	if owner, _ := ctx.Value(memoryTxKey{}).(*MemoryStore); owner == m {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.snapshot()
	if err := fn(context.WithValue(ctx, memoryTxKey{}, m)); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() {}

func (m *MemoryStore) track(id uuid.UUID) {
	m.next++
	m.seq[id] = m.next
}

// paginate вырезает страницу из отсортированного списка
func paginate[T any](items []T, page, pageSize int) []T {
	offset := models.PageOffset(page, pageSize)
	if offset < 0 || offset >= len(items) {
		return nil
	}
	end := len(items)
	if pageSize > 0 && pageSize < end-offset {
		end = offset + pageSize
	}
	return items[offset:end]
}

// --- объявления ---

func (m *MemoryStore) CreateAd(ctx context.Context, ad *models.Ad) error {
	defer m.lock(ctx)()

	if ad.ID == uuid.Nil {
		ad.ID = uuid.New()
	}
	if _, ok := m.ads[ad.ID]; ok {
		return fmt.Errorf("%w: ads_pkey", ErrDuplicate)
	}
	m.ads[ad.ID] = *ad
	m.track(ad.ID)
	return nil
}

func (m *MemoryStore) GetAd(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	defer m.lock(ctx)()

	ad, ok := m.ads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ad, nil
}

func (m *MemoryStore) LockAd(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	return m.GetAd(ctx, id)
}

func (m *MemoryStore) UpdateAd(ctx context.Context, ad *models.Ad) error {
	defer m.lock(ctx)()

	stored, ok := m.ads[ad.ID]
	if !ok {
		return ErrNotFound
	}
	updated := *ad
	updated.UserID = stored.UserID
	updated.CreatedAt = stored.CreatedAt
	m.ads[ad.ID] = updated
	return nil
}

func (m *MemoryStore) DeleteAd(ctx context.Context, id uuid.UUID) error {
	defer m.lock(ctx)()

	if _, ok := m.ads[id]; !ok {
		return ErrNotFound
	}
	// Как и в PostgreSQL, внешние ключи не каскадные
	for _, p := range m.proposals {
		if p.AdSenderID == id || p.AdReceiverID == id {
			return fmt.Errorf("объявление %s используется в предложении %s", id, p.ID)
		}
	}
	for _, f := range m.favorites {
		if f.AdID == id {
			return fmt.Errorf("объявление %s находится в избранном", id)
		}
	}
	delete(m.ads, id)
	delete(m.seq, id)
	return nil
}

func (m *MemoryStore) matchAd(ad models.Ad, f models.AdFilter) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(ad.Title), needle) &&
			!strings.Contains(strings.ToLower(ad.Description), needle) {
			return false
		}
	}
	if f.Category != "" && !strings.EqualFold(ad.Category, f.Category) {
		return false
	}
	if f.Condition != "" && ad.Condition != f.Condition {
		return false
	}
	switch f.Owner {
	case models.OwnerIs:
		return ad.UserID == f.UserID
	case models.OwnerIsNot:
		return ad.UserID != f.UserID
	}
	return true
}

func (m *MemoryStore) ListAds(ctx context.Context, filter models.AdFilter) ([]models.Ad, int, error) {
	defer m.lock(ctx)()

	var matched []models.Ad
	for _, ad := range m.ads {
		if m.matchAd(ad, filter) {
			matched = append(matched, ad)
		}
	}
	slices.SortFunc(matched, func(a, b models.Ad) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(m.seq[a.ID], m.seq[b.ID])
	})

	return paginate(matched, filter.Page, filter.PageSize), len(matched), nil
}

func (m *MemoryStore) ListCategories(ctx context.Context) ([]string, error) {
	defer m.lock(ctx)()

	seen := make(map[string]struct{})
	var categories []string
	for _, ad := range m.ads {
		if _, ok := seen[ad.Category]; ok {
			continue
		}
		seen[ad.Category] = struct{}{}
		categories = append(categories, ad.Category)
	}
	slices.Sort(categories)
	return categories, nil
}

// --- предложения ---

func (m *MemoryStore) withAds(p models.ExchangeProposal) models.ExchangeProposal {
	if ad, ok := m.ads[p.AdSenderID]; ok {
		p.AdSender = &ad
	}
	if ad, ok := m.ads[p.AdReceiverID]; ok {
		p.AdReceiver = &ad
	}
	return p
}

func (m *MemoryStore) checkProposalAds(p *models.ExchangeProposal) error {
	if _, ok := m.ads[p.AdSenderID]; !ok {
		return fmt.Errorf("%w: exchange_proposals_ad_sender_id_fkey", ErrNotFound)
	}
	if _, ok := m.ads[p.AdReceiverID]; !ok {
		return fmt.Errorf("%w: exchange_proposals_ad_receiver_id_fkey", ErrNotFound)
	}
	return nil
}

func (m *MemoryStore) CreateProposal(ctx context.Context, p *models.ExchangeProposal) error {
	defer m.lock(ctx)()

	if err := m.checkProposalAds(p); err != nil {
		return err
	}
	if p.Status == models.StatusWaiting && m.hasWaiting(p.AdSenderID, p.AdReceiverID, p.ID) {
		return fmt.Errorf("%w: exchange_proposals_waiting_pair_key", ErrDuplicate)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	stored := *p
	stored.AdSender, stored.AdReceiver = nil, nil
	m.proposals[p.ID] = stored
	m.track(p.ID)
	return nil
}

func (m *MemoryStore) GetProposal(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error) {
	defer m.lock(ctx)()

	p, ok := m.proposals[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = m.withAds(p)
	return &p, nil
}

func (m *MemoryStore) UpdateProposal(ctx context.Context, p *models.ExchangeProposal) (bool, error) {
	defer m.lock(ctx)()

	stored, ok := m.proposals[p.ID]
	if !ok {
		return false, ErrNotFound
	}
	if stored.Status != models.StatusWaiting {
		return false, nil
	}
	if err := m.checkProposalAds(p); err != nil {
		return false, err
	}
	if m.hasWaiting(p.AdSenderID, p.AdReceiverID, p.ID) {
		return false, fmt.Errorf("%w: exchange_proposals_waiting_pair_key", ErrDuplicate)
	}
	stored.AdSenderID = p.AdSenderID
	stored.AdReceiverID = p.AdReceiverID
	stored.Comment = p.Comment
	stored.UpdatedAt = p.UpdatedAt
	m.proposals[p.ID] = stored
	return true, nil
}

func (m *MemoryStore) SetProposalStatus(ctx context.Context, id uuid.UUID, from, to models.ProposalStatus) (bool, error) {
	defer m.lock(ctx)()

	p, ok := m.proposals[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	m.proposals[id] = p
	return true, nil
}

func (m *MemoryStore) DeleteProposal(ctx context.Context, id uuid.UUID) error {
	defer m.lock(ctx)()

	if _, ok := m.proposals[id]; !ok {
		return ErrNotFound
	}
	delete(m.proposals, id)
	delete(m.seq, id)
	return nil
}

func (m *MemoryStore) DeleteProposalsByAd(ctx context.Context, adID uuid.UUID) (int, error) {
	defer m.lock(ctx)()

	removed := 0
	for id, p := range m.proposals {
		if p.AdSenderID == adID || p.AdReceiverID == adID {
			delete(m.proposals, id)
			delete(m.seq, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) ListProposals(ctx context.Context, side models.ProposalSide, userID uuid.UUID, page, pageSize int) ([]models.ExchangeProposal, int, error) {
	defer m.lock(ctx)()

	var matched []models.ExchangeProposal
	for _, p := range m.proposals {
		adID := p.AdSenderID
		if side == models.SideReceiver {
			adID = p.AdReceiverID
		}
		if ad, ok := m.ads[adID]; ok && ad.UserID == userID {
			matched = append(matched, m.withAds(p))
		}
	}
	slices.SortFunc(matched, func(a, b models.ExchangeProposal) int {
		// статус по убыванию: waiting, declined, accepted
		if c := cmp.Compare(b.Status, a.Status); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(m.seq[a.ID], m.seq[b.ID])
	})

	return paginate(matched, page, pageSize), len(matched), nil
}

func (m *MemoryStore) HasWaitingProposal(ctx context.Context, senderAdID, receiverAdID, exclude uuid.UUID) (bool, error) {
	defer m.lock(ctx)()
	return m.hasWaiting(senderAdID, receiverAdID, exclude), nil
}

// hasWaiting повторяет частичный уникальный индекс по ожидающим парам
func (m *MemoryStore) hasWaiting(senderAdID, receiverAdID, exclude uuid.UUID) bool {
	for id, p := range m.proposals {
		if id != exclude && p.Status == models.StatusWaiting &&
			p.AdSenderID == senderAdID && p.AdReceiverID == receiverAdID {
			return true
		}
	}
	return false
}

// --- пользователи ---

func (m *MemoryStore) usernameTaken(username string) bool {
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	defer m.lock(ctx)()

	if m.usernameTaken(u.Username) {
		return fmt.Errorf("%w: users_username_key", ErrDuplicate)
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer m.lock(ctx)()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	defer m.lock(ctx)()

	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateUser(ctx context.Context, u *models.User) error {
	defer m.lock(ctx)()

	stored, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	stored.FirstName = u.FirstName
	stored.LastName = u.LastName
	stored.Email = u.Email
	stored.AvatarURL = u.AvatarURL
	m.users[u.ID] = stored
	return nil
}

func (m *MemoryStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	defer m.lock(ctx)()

	u, ok := m.users[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	m.users[id] = u
	return nil
}

func (m *MemoryStore) UpsertTelegramUser(ctx context.Context, tg models.TelegramUser) (*models.User, error) {
	defer m.lock(ctx)()

	now := time.Now().UTC()
	if id, ok := m.telegram[tg.TelegramID]; ok {
		u := m.users[id]
		u.LastLoginAt = &now
		m.users[id] = u
		return &u, nil
	}

	u := models.User{
		ID:          uuid.New(),
		Username:    TelegramUsername(tg.TelegramID),
		FirstName:   tg.FirstName,
		LastName:    tg.LastName,
		AvatarURL:   tg.PhotoURL,
		CreatedAt:   now,
		LastLoginAt: &now,
	}
	if m.usernameTaken(u.Username) {
		return nil, fmt.Errorf("%w: users_username_key", ErrDuplicate)
	}
	m.users[u.ID] = u
	m.telegram[tg.TelegramID] = u.ID
	return &u, nil
}

// --- избранное ---

func (m *MemoryStore) AddFavorite(ctx context.Context, f *models.Favorite) error {
	defer m.lock(ctx)()

	if _, ok := m.ads[f.AdID]; !ok {
		return fmt.Errorf("%w: favorites_ad_id_fkey", ErrNotFound)
	}
	for _, existing := range m.favorites {
		if existing.UserID == f.UserID && existing.AdID == f.AdID {
			return fmt.Errorf("%w: favorites_user_id_ad_id_key", ErrDuplicate)
		}
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	stored := *f
	stored.Ad = nil
	m.favorites[f.ID] = stored
	m.track(f.ID)
	return nil
}

func (m *MemoryStore) RemoveFavorite(ctx context.Context, userID, adID uuid.UUID) (bool, error) {
	defer m.lock(ctx)()

	for id, f := range m.favorites {
		if f.UserID == userID && f.AdID == adID {
			delete(m.favorites, id)
			delete(m.seq, id)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) IsFavorite(ctx context.Context, userID, adID uuid.UUID) (bool, error) {
	defer m.lock(ctx)()

	for _, f := range m.favorites {
		if f.UserID == userID && f.AdID == adID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListFavorites(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.Favorite, int, error) {
	defer m.lock(ctx)()

	var matched []models.Favorite
	for _, f := range m.favorites {
		if f.UserID != userID {
			continue
		}
		if ad, ok := m.ads[f.AdID]; ok {
			f.Ad = &ad
		}
		matched = append(matched, f)
	}
	slices.SortFunc(matched, func(a, b models.Favorite) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(m.seq[b.ID], m.seq[a.ID])
	})

	return paginate(matched, page, pageSize), len(matched), nil
}

func (m *MemoryStore) DeleteFavoritesByAd(ctx context.Context, adID uuid.UUID) error {
	defer m.lock(ctx)()

	for id, f := range m.favorites {
		if f.AdID == adID {
			delete(m.favorites, id)
			delete(m.seq, id)
		}
	}
	return nil
}

package ad

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/models"
)

type fakeImages struct {
	mu      sync.Mutex
	removed []string
	err     error
}

func (f *fakeImages) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	return f.err
}

func (f *fakeImages) KeyPrefix(user uuid.UUID) string {
	return "barter/ads/" + user.String() + "/"
}

func imageKey(user uuid.UUID, name string) string {
	return "barter/ads/" + user.String() + "/" + name
}

func newTestCatalog(t *testing.T) (*Catalog, *db.MemoryStore, *fakeImages) {
	t.Helper()
	store := db.NewMemoryStore()
	images := &fakeImages{}
	catalog := NewCatalog(store, images, 2, slog.Default())

	// монотонное время, чтобы порядок создания был однозначным
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	catalog.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return catalog, store, images
}

func ptr[T any](v T) *T { return &v }

func validInput(title string) models.AdInput {
	return models.AdInput{
		Title:       title,
		Description: "Описание " + title,
		Category:    "Books",
		Condition:   models.ConditionNew,
	}
}

func TestCatalog_Create(t *testing.T) {
	ctx := context.Background()
	catalog, _, _ := newTestCatalog(t)
	user := uuid.New()

	t.Run("успех", func(t *testing.T) {
		in := validInput("  Гарри Поттер  ")
		in.ImageURL = ptr("https://cdn.example/1.jpg")
		in.ImageKey = ptr(imageKey(user, "1"))

		ad, err := catalog.Create(ctx, user, in)
		require.NoError(t, err)
		assert.Equal(t, user, ad.UserID)
		assert.Equal(t, "Гарри Поттер", ad.Title)
		assert.False(t, ad.CreatedAt.IsZero())
		assert.Equal(t, imageKey(user, "1"), *ad.ImageKey)
	})

	t.Run("аноним", func(t *testing.T) {
		_, err := catalog.Create(ctx, uuid.Nil, validInput("x"))
		assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	tests := []struct {
		name   string
		mutate func(in *models.AdInput)
		field  string
	}{
		{"пустое название", func(in *models.AdInput) { in.Title = "   " }, "title"},
		{"длинное название", func(in *models.AdInput) { in.Title = strings.Repeat("я", MaxTitleLength+1) }, "title"},
		{"пустое описание", func(in *models.AdInput) { in.Description = "" }, "description"},
		{"длинная категория", func(in *models.AdInput) { in.Category = strings.Repeat("к", MaxCategoryLength+1) }, "category"},
		{"нет состояния", func(in *models.AdInput) { in.Condition = "" }, "condition"},
		{"неизвестное состояние", func(in *models.AdInput) { in.Condition = "broken" }, "condition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput("ok")
			tt.mutate(&in)
			_, err := catalog.Create(ctx, user, in)
			require.ErrorIs(t, err, apperrors.ErrValidation)

			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}

	t.Run("название ровно на границе", func(t *testing.T) {
		_, err := catalog.Create(ctx, user, validInput(strings.Repeat("я", MaxTitleLength)))
		assert.NoError(t, err)
	})
}

func TestCatalog_List(t *testing.T) {
	ctx := context.Background()
	catalog, _, _ := newTestCatalog(t)
	alice, bob := uuid.New(), uuid.New()

	mk := func(user uuid.UUID, title, category string, cond models.Condition) *models.Ad {
		ad, err := catalog.Create(ctx, user, models.AdInput{Title: title, Description: "d", Category: category, Condition: cond})
		require.NoError(t, err)
		return ad
	}
	a1 := mk(alice, "Велосипед", "Спорт", models.ConditionNew)
	a2 := mk(bob, "Чайник", "Дом", models.ConditionUsed)
	a3 := mk(alice, "Мяч", "спорт", models.ConditionNew)

	t.Run("порядок и пагинация", func(t *testing.T) {
		page, err := catalog.List(ctx, models.AdFilter{Page: 1})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		assert.Equal(t, 2, page.Pages)
		require.Len(t, page.Items, 2)
		assert.Equal(t, a1.ID, page.Items[0].ID)
		assert.Equal(t, a2.ID, page.Items[1].ID)

		page, err = catalog.List(ctx, models.AdFilter{Page: 2})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, a3.ID, page.Items[0].ID)
	})

	t.Run("страница за пределами пуста", func(t *testing.T) {
		page, err := catalog.List(ctx, models.AdFilter{Page: 9})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.NotNil(t, page.Items)
	})

	t.Run("огромный номер страницы", func(t *testing.T) {
		for _, n := range []int{math.MaxInt/2 + 7, math.MaxInt} {
			page, err := catalog.List(ctx, models.AdFilter{Page: n})
			require.NoError(t, err)
			assert.Empty(t, page.Items)
			assert.Equal(t, 3, page.Total)
		}
	})

	t.Run("состояние точно, категория без регистра", func(t *testing.T) {
		page, err := catalog.List(ctx, models.AdFilter{Condition: models.ConditionNew, Category: "СПОРТ", Page: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		for _, ad := range page.Items {
			assert.Equal(t, models.ConditionNew, ad.Condition)
		}

		page, err = catalog.List(ctx, models.AdFilter{Condition: "NEW", Page: 1})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
	})

	t.Run("поиск", func(t *testing.T) {
		page, err := catalog.List(ctx, models.AdFilter{Search: "чай", Page: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, a2.ID, page.Items[0].ID)
	})

	t.Run("свои и чужие", func(t *testing.T) {
		mine, err := catalog.ListMine(ctx, alice, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, mine.Total)

		others, err := catalog.ListOthers(ctx, alice, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, others.Total)
		assert.Equal(t, bob, others.Items[0].UserID)

		_, err = catalog.ListMine(ctx, uuid.Nil, 1)
		assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("категории", func(t *testing.T) {
		categories, err := catalog.Categories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Дом", "Спорт", "спорт"}, categories)
	})
}

func TestCatalog_Update(t *testing.T) {
	ctx := context.Background()
	catalog, _, images := newTestCatalog(t)
	owner, stranger := uuid.New(), uuid.New()

	in := validInput("Лампа")
	in.ImageURL = ptr("https://cdn.example/old.jpg")
	in.ImageKey = ptr(imageKey(owner, "old"))
	ad, err := catalog.Create(ctx, owner, in)
	require.NoError(t, err)

	t.Run("чужой не может менять", func(t *testing.T) {
		_, err := catalog.Update(ctx, stranger, ad.ID, models.AdPatch{Title: ptr("Взлом")})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)

		stored, err := catalog.Get(ctx, ad.ID)
		require.NoError(t, err)
		assert.Equal(t, "Лампа", stored.Title)
	})

	t.Run("аноним", func(t *testing.T) {
		_, err := catalog.Update(ctx, uuid.Nil, ad.ID, models.AdPatch{})
		assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
	})

	t.Run("несуществующее", func(t *testing.T) {
		_, err := catalog.Update(ctx, owner, uuid.New(), models.AdPatch{})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("невалидный патч ничего не меняет", func(t *testing.T) {
		_, err := catalog.Update(ctx, owner, ad.ID, models.AdPatch{Title: ptr("")})
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		stored, err := catalog.Get(ctx, ad.ID)
		require.NoError(t, err)
		assert.Equal(t, "Лампа", stored.Title)
	})

	t.Run("владелец меняет поля и изображение", func(t *testing.T) {
		updated, err := catalog.Update(ctx, owner, ad.ID, models.AdPatch{
			Title:     ptr("Торшер"),
			Condition: ptr(models.ConditionUsed),
			ImageURL:  ptr("https://cdn.example/new.jpg"),
			ImageKey:  ptr(imageKey(owner, "new")),
		})
		require.NoError(t, err)
		assert.Equal(t, "Торшер", updated.Title)
		assert.Equal(t, "Описание Лампа", updated.Description)
		assert.Equal(t, models.ConditionUsed, updated.Condition)
		assert.Equal(t, owner, updated.UserID)
		assert.Equal(t, ad.CreatedAt, updated.CreatedAt)
		assert.True(t, updated.UpdatedAt.After(ad.UpdatedAt))
		assert.Equal(t, []string{imageKey(owner, "old")}, images.removed)
	})
}

func TestCatalog_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	catalog, store, images := newTestCatalog(t)
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	in := validInput("Книга")
	in.ImageKey = ptr(imageKey(alice, "book"))
	book, err := catalog.Create(ctx, alice, in)
	require.NoError(t, err)
	bike, err := catalog.Create(ctx, bob, validInput("Велосипед"))
	require.NoError(t, err)
	lamp, err := catalog.Create(ctx, carol, validInput("Лампа"))
	require.NoError(t, err)

	now := time.Now().UTC()
	proposals := []*models.ExchangeProposal{
		{AdSenderID: book.ID, AdReceiverID: bike.ID, Status: models.StatusWaiting, CreatedAt: now, UpdatedAt: now},
		{AdSenderID: lamp.ID, AdReceiverID: book.ID, Status: models.StatusAccepted, CreatedAt: now, UpdatedAt: now},
		{AdSenderID: lamp.ID, AdReceiverID: bike.ID, Status: models.StatusWaiting, CreatedAt: now, UpdatedAt: now},
	}
	for _, p := range proposals {
		require.NoError(t, store.CreateProposal(ctx, p))
	}
	require.NoError(t, store.AddFavorite(ctx, &models.Favorite{UserID: bob, AdID: book.ID, CreatedAt: now}))

	t.Run("чужой не может удалить", func(t *testing.T) {
		err := catalog.Delete(ctx, bob, book.ID)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		_, err = catalog.Get(ctx, book.ID)
		assert.NoError(t, err)
	})

	require.NoError(t, catalog.Delete(ctx, alice, book.ID))

	_, err = catalog.Get(ctx, book.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	for _, p := range proposals[:2] {
		_, err := store.GetProposal(ctx, p.ID)
		assert.ErrorIs(t, err, db.ErrNotFound)
	}
	_, err = store.GetProposal(ctx, proposals[2].ID)
	assert.NoError(t, err)

	fav, err := store.IsFavorite(ctx, bob, book.ID)
	require.NoError(t, err)
	assert.False(t, fav)

	assert.Equal(t, []string{imageKey(alice, "book")}, images.removed)

	t.Run("повторное удаление", func(t *testing.T) {
		assert.ErrorIs(t, catalog.Delete(ctx, alice, book.ID), apperrors.ErrNotFound)
	})
}

func TestCatalog_DeleteIgnoresImageFailure(t *testing.T) {
	ctx := context.Background()
	catalog, _, images := newTestCatalog(t)
	images.err = errors.New("cdn down")
	owner := uuid.New()

	in := validInput("Шкаф")
	in.ImageKey = ptr(imageKey(owner, "wardrobe"))
	ad, err := catalog.Create(ctx, owner, in)
	require.NoError(t, err)

	require.NoError(t, catalog.Delete(ctx, owner, ad.ID))
	assert.Equal(t, []string{imageKey(owner, "wardrobe")}, images.removed)
}

func TestCatalog_ForeignImageKey(t *testing.T) {
	ctx := context.Background()
	catalog, _, images := newTestCatalog(t)
	alice, bob := uuid.New(), uuid.New()

	in := validInput("Картина")
	in.ImageKey = ptr(imageKey(alice, "painting"))
	painting, err := catalog.Create(ctx, alice, in)
	require.NoError(t, err)

	t.Run("чужой ключ при создании", func(t *testing.T) {
		for _, key := range []string{
			imageKey(alice, "painting"),
			imageKey(bob, "../"+alice.String()+"/painting"),
			"barter/ads/" + bob.String() + "/",
			"painting",
		} {
			in := validInput("Копия")
			in.ImageKey = ptr(key)
			_, err := catalog.Create(ctx, bob, in)
			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr, key)
			assert.Contains(t, appErr.Fields, "image_key", key)
		}
	})

	t.Run("чужой ключ при изменении", func(t *testing.T) {
		lamp, err := catalog.Create(ctx, bob, validInput("Лампа"))
		require.NoError(t, err)

		_, err = catalog.Update(ctx, bob, lamp.ID, models.AdPatch{ImageKey: ptr(imageKey(alice, "painting"))})
		assert.ErrorIs(t, err, apperrors.ErrValidation)

		require.NoError(t, catalog.Delete(ctx, bob, lamp.ID))
	})

	t.Run("свой ключ сохраняется без перепроверки", func(t *testing.T) {
		_, err := catalog.Update(ctx, alice, painting.ID, models.AdPatch{Title: ptr("Пейзаж")})
		assert.NoError(t, err)
	})

	assert.Empty(t, images.removed)
	require.NoError(t, catalog.Delete(ctx, alice, painting.ID))
	assert.Equal(t, []string{imageKey(alice, "painting")}, images.removed)
}

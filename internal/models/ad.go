package models

import (
	"time"

	"github.com/google/uuid"
)

// Condition состояние товара
type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionUsed        Condition = "used"
	ConditionDisplay     Condition = "display"
	ConditionDiscounted  Condition = "discounted"
	ConditionRefurbished Condition = "refurbished"
	ConditionIncomplete  Condition = "incomplete"
	ConditionExpiring    Condition = "expiring"
	ConditionReturned    Condition = "returned"
	ConditionOther       Condition = "other"
)

// ConditionChoice значение состояния с подписью для интерфейса
type ConditionChoice struct {
	Value Condition `json:"value"`
	Label string    `json:"label"`
}

// ConditionChoices допустимые состояния в порядке отображения
var ConditionChoices = []ConditionChoice{
	{ConditionNew, "новый"},
	{ConditionUsed, "б/у"},
	{ConditionDisplay, "витринный"},
	{ConditionDiscounted, "уцененный"},
	{ConditionRefurbished, "восстановленный"},
	{ConditionIncomplete, "недоукомплектованный"},
	{ConditionExpiring, "заканчивается срок годности"},
	{ConditionReturned, "продается повторно"},
	{ConditionOther, "другое"},
}

// Valid сообщает, входит ли значение в список допустимых состояний
func (c Condition) Valid() bool {
	for _, choice := range ConditionChoices {
		if choice.Value == c {
			return true
		}
	}
	return false
}

// Ad представляет объявление (товар для обмена)
type Ad struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    *string   `json:"image_url,omitempty"`
	ImageKey    *string   `json:"-"`
	Category    string    `json:"category"`
	Condition   Condition `json:"condition"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AdInput поля нового объявления
type AdInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    *string   `json:"image_url"`
	ImageKey    *string   `json:"image_key"`
	Category    string    `json:"category"`
	Condition   Condition `json:"condition"`
}

// AdPatch изменяемые поля объявления. nil означает "не менять".
type AdPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	ImageURL    *string    `json:"image_url"`
	ImageKey    *string    `json:"image_key"`
	Category    *string    `json:"category"`
	Condition   *Condition `json:"condition"`
}

// Ownership определяет, кому отбираются объявления в выборке
type Ownership int

const (
	OwnerAny Ownership = iota
	OwnerIs
	OwnerIsNot
)

// AdFilter параметры выборки объявлений
type AdFilter struct {
	Search    string
	Category  string
	Condition Condition
	Owner     Ownership
	UserID    uuid.UUID
	Page      int
	PageSize  int
}

// Offset смещение для текущей страницы
func (f AdFilter) Offset() int {
	return PageOffset(f.Page, f.PageSize)
}

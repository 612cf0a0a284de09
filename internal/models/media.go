package models

import (
	"encoding/json"
)

// UploadParams параметры для прямой загрузки изображения клиентом
type UploadParams struct {
	Provider  string            `json:"provider"`
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	ImageKey  string            `json:"image_key"`
	ImageURL  string            `json:"image_url,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// CloudinaryResponse часть ответа Cloudinary, которую клиент пересылает после загрузки
type CloudinaryResponse struct {
	AssetID   string  `json:"asset_id"`
	PublicID  string  `json:"public_id"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Bytes     int     `json:"bytes"`
	URL       string  `json:"url"`
	SecureURL string  `json:"secure_url"`
	Eager     []Eager `json:"eager"`
}

// Eager содержит информацию о трансформациях изображения
type Eager struct {
	Status    string `json:"status"`
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
}

// ImageRef извлекает ссылку и ключ изображения из ответа Cloudinary
func (cr CloudinaryResponse) ImageRef() (url, key string) {
	url = cr.SecureURL
	if url == "" {
		url = cr.URL
	}
	return url, cr.PublicID
}

// ParseCloudinaryResponse конвертирует JSON-ответ от Cloudinary в структуру
func ParseCloudinaryResponse(data []byte) (CloudinaryResponse, error) {
	var response CloudinaryResponse
	err := json.Unmarshal(data, &response)
	return response, err
}

package domain

// Payload is the JSON body delivered to the notification sink.
type Payload struct {
	OrderID       string             `json:"orderId"`
	Tier          string             `json:"tier"`
	TierTitle     string             `json:"tierTitle,omitempty"`
	Price         string             `json:"price"`
	Tip           string             `json:"tip"`
	Total         string             `json:"total"`
	AmountPaid    string             `json:"amountPaid"`
	Currency      string             `json:"currency"`
	Email         string             `json:"email"`
	CustomerEmail string             `json:"customerEmail"`
	Timestamp     string             `json:"timestamp"`
	Attempt       int                `json:"attempt"`
	ImageFile     ImageFile          `json:"imageFile"`
	Archive       *ArchiveAttachment `json:"archive,omitempty"`
}

type ImageFile struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	Alt          string `json:"alt"`
	Photographer string `json:"photographer"`
	SourceID     string `json:"pexelsId"`
	PageURL      string `json:"pageUrl,omitempty"`
}

type ArchiveAttachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
	Base64   string `json:"base64"`
}

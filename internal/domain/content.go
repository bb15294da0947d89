package domain

import "encoding/json"

// ContentType identifies the kind of a message content part.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImageURL ContentType = "image_url"
)

// Image detail levels accepted on image_url parts.
const (
	ImageDetailAuto = "auto"
	ImageDetailLow  = "low"
	ImageDetailHigh = "high"
)

// ContentPart is a single part of multi-part message content.
type ContentPart struct {
	Type ContentType `json:"type"`

	// For text parts
	Text string `json:"text,omitempty"`

	// For image_url parts. The URL may be a remote http(s) address or a
	// data: URI carrying base64 image bytes.
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL is a reference to image content.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"` // "auto", "low", "high"
}

// MessageContent is either a plain string or an array of ContentParts.
// Simple text requests stay simple on the wire; multimodal requests use
// the part array form.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// IsText reports whether the content is plain text with no parts.
func (mc *MessageContent) IsText() bool {
	return len(mc.Parts) == 0
}

// IsEmpty reports whether the content carries neither text nor parts.
func (mc *MessageContent) IsEmpty() bool {
	return mc.Text == "" && len(mc.Parts) == 0
}

// String returns the textual content, concatenating text parts when the
// content is multi-part.
func (mc *MessageContent) String() string {
	if mc.IsText() {
		return mc.Text
	}
	var out string
	for _, part := range mc.Parts {
		if part.Type == ContentTypeText {
			out += part.Text
		}
	}
	return out
}

// Images returns the image parts of the content, if any.
func (mc *MessageContent) Images() []ContentPart {
	var images []ContentPart
	for _, part := range mc.Parts {
		if part.Type == ContentTypeImageURL && part.ImageURL != nil {
			images = append(images, part)
		}
	}
	return images
}

// MarshalJSON implements json.Marshaler.
func (mc MessageContent) MarshalJSON() ([]byte, error) {
	if mc.IsText() {
		return json.Marshal(mc.Text)
	}
	return json.Marshal(mc.Parts)
}

// UnmarshalJSON implements json.Unmarshaler.
func (mc *MessageContent) UnmarshalJSON(data []byte) error {
	// Try string first
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		mc.Text = str
		mc.Parts = nil
		return nil
	}

	// Fall back to an array of content parts
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	mc.Parts = parts
	mc.Text = ""
	return nil
}

// TextContent creates plain text content.
func TextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// PartsContent creates multi-part content.
func PartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{Parts: parts}
}

// TextPart creates a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentTypeText, Text: text}
}

// ImageURLPart creates an image content part.
func ImageURLPart(url, detail string) ContentPart {
	return ContentPart{
		Type:     ContentTypeImageURL,
		ImageURL: &ImageURL{URL: url, Detail: detail},
	}
}

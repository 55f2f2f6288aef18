package message

import (
	"fmt"
	"unicode/utf8"
)

const (
	MaxTextBytes = 4096 // 4KB max text size
	MaxTextChars = 2000 // max character count
	MaxImageLen  = 2048 // max image reference length
)

// ValidateContent checks that a message carries something deliverable: at
// least one of text or image, with text within size limits.
func ValidateContent(text, image string) error {
	if text == "" && image == "" {
		return fmt.Errorf("message has neither text nor image")
	}
	if len(text) > MaxTextBytes {
		return fmt.Errorf("text exceeds %d byte limit", MaxTextBytes)
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return fmt.Errorf("text exceeds %d character limit", MaxTextChars)
	}
	if text != "" && !utf8.ValidString(text) {
		return fmt.Errorf("text contains invalid UTF-8")
	}
	if len(image) > MaxImageLen {
		return fmt.Errorf("image reference exceeds %d byte limit", MaxImageLen)
	}
	return nil
}

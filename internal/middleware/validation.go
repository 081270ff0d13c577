package middleware

import (
	"errors"
	"strconv"
	"unicode/utf8"
)

const (
	maxMessageBytes = 16 * 1024
	maxTitleRunes   = 255
	maxReasonRunes  = 1000
)

// ValidateMessageContent validates inbound chat text.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("content cannot be empty")
	}
	if len(content) > maxMessageBytes {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ParseID parses a positive numeric record ID from a path parameter.
func ParseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id format")
	}
	return uint(id), nil
}

// ValidateTitle validates an article title.
func ValidateTitle(title string) error {
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return errors.New("title exceeds maximum length")
	}
	return nil
}

// ValidateReason validates an escalation reason.
func ValidateReason(reason string) error {
	if !utf8.ValidString(reason) {
		return errors.New("reason must be valid UTF-8")
	}
	if utf8.RuneCountInString(reason) > maxReasonRunes {
		return errors.New("reason exceeds maximum length")
	}
	return nil
}

package forum

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength = 120
	MaxPostLength  = 5000
)

var (
	ErrEmptyBody    = errors.New("post cannot be empty")
	ErrBodyTooLong  = fmt.Errorf("post is longer than %d characters", MaxPostLength)
	ErrEmptyTitle   = errors.New("title cannot be empty")
	ErrTitleTooLong = fmt.Errorf("title is longer than %d characters", MaxTitleLength)
)

var profanity = []string{"kerfuffle", "sharbert", "fornax"}

// cleanBody validates a post body and masks profane words.
func cleanBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > MaxPostLength {
		return "", ErrBodyTooLong
	}

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		words := strings.Split(line, " ")
		for j, word := range words {
			if slices.Contains(profanity, strings.ToLower(word)) {
				words[j] = "****"
			}
		}
		lines[i] = strings.Join(words, " ")
	}
	return strings.Join(lines, "\n"), nil
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return title, nil
}

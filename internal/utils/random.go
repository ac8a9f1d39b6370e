package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const localPartAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateMailboxLocalPart returns a random 15-character alphanumeric
// local-part for a disposable mailbox address.
func GenerateMailboxLocalPart() string {
	id, err := gonanoid.Generate(localPartAlphabet, 15)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateProfileSuffix returns a short random suffix for ephemeral browser
// profile directory names.
func GenerateProfileSuffix() string {
	id, err := gonanoid.Generate(localPartAlphabet, 8)
	if err != nil {
		panic(err)
	}
	return id
}

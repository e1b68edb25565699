package utils

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nanoidAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateNanoIDWithPrefix creates a prefixed row ID, e.g. rpt_x2k9d04mf1ab
func GenerateNanoIDWithPrefix(prefix string, length int) string {
	id, err := gonanoid.Generate(nanoidAlphabet, length)
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%s_%s", prefix, id)
}

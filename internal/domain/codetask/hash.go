package codetask

import (
	"crypto/sha256"
	"encoding/hex"
)

// PromptHash derives the dedup key material from the effective prompt. A NUL
// separator keeps the system prompt and user prompt from bleeding into each
// other, so the same concatenation produced differently hashes differently.
func PromptHash(systemPrompt, prompt string) string {
	sum := sha256.Sum256([]byte(systemPrompt + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

package ai

import (
	"github.com/pkoukk/tiktoken-go"
)

// CountTokens returns the number of tokens in a string for a specific model.
func CountTokens(model string, text string) (int, error) {
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Unknown model: fall back to the encoding most chat models use.
		tkm, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, err
		}
	}

	tokenIds := tkm.Encode(text, nil, nil)
	return len(tokenIds), nil
}

package compress

// EstimateTokens approximates the token count of a text: CJK unified
// ideographs weigh in at 1/1.5 tokens per character, everything else
// at 1/4 token per character, truncated to an integer. This is a
// sizing heuristic, not a tokenizer; it makes no claim of matching any
// model's actual tokenization.
func EstimateTokens(text string) int {
	var cjk, other int
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			cjk++
		} else {
			other++
		}
	}
	return int(float64(cjk)/1.5 + float64(other)/4)
}

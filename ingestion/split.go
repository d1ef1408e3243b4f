package ingestion

// DefaultMaxChars is the largest chunk sent to the splitter in one request.
const DefaultMaxChars = 4000

// Split cuts text into contiguous chunks of at most maxChars characters.
// Concatenating the chunks reproduces text exactly. A maxChars of zero or
// less selects DefaultMaxChars.
func Split(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+maxChars-1)/maxChars)
	for start := 0; start < len(runes); start += maxChars {
		end := min(start+maxChars, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

package checks

// outsideOfStrings calls fn with every part of markup that is not inside a quoted string,
// along with the part's offset in markup.
func outsideOfStrings(markup string, fn func(chunk string, start int)) {
	start := 0
	for i := 0; i < len(markup); i++ {
		quote := markup[i]
		if quote != '\'' && quote != '"' {
			continue
		}
		fn(markup[start:i], start)

		j := i + 1
		for ; j < len(markup) && markup[j] != quote; j++ {
			if markup[j] == '\\' {
				j++
			}
		}
		i = j
		start = j + 1
	}
	if start < len(markup) {
		fn(markup[start:], start)
	}
}

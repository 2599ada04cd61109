package stats

type threshold struct {
	below int
	name  string
}

var codeforcesRanks = []threshold{
	{1000, "Newbie"},
	{1200, "Pupil"},
	{1400, "Specialist"},
	{1600, "Expert"},
	{1900, "Candidate Master"},
	{2100, "Master"},
	{2300, "International Master"},
	{2400, "Grandmaster"},
}

var atcoderColors = []threshold{
	{400, "Gray"},
	{800, "Brown"},
	{1200, "Green"},
	{1600, "Cyan"},
	{2000, "Blue"},
	{2400, "Yellow"},
	{2800, "Orange"},
}

func lookup(table []threshold, rating int, top string) string {
	for _, t := range table {
		if rating < t.below {
			return t.name
		}
	}
	return top
}

// CodeforcesRank maps a numeric Codeforces rating to its rank name.
func CodeforcesRank(rating int) string {
	return lookup(codeforcesRanks, rating, "International Grandmaster")
}

// AtCoderRank maps a numeric AtCoder rating to its color name.
func AtCoderRank(rating int) string {
	return lookup(atcoderColors, rating, "Red")
}

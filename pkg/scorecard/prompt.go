package scorecard

import (
	"fmt"
	"strings"
)

const (
	// MaxImages is the most scorecards accepted in one request.
	MaxImages = 5

	jsonOnly = "Ensure the JSON is correctly formatted and includes all visible data from each scorecard. Only include JSON in your response."
)

const cardShape = `{
    "course": {
      "name": "Course Name",
      "holes": [par1, par2, ..., par18]
    },
    "players": {
      "player1": [score1, score2, ..., score18],
      "player2": [score1, score2, ..., score18]
    }
  }`

// ValidateCount checks the number of images against the variant's limits.
func ValidateCount(n int, single bool) error {
	if single {
		if n != 1 {
			return fmt.Errorf("%w: exactly 1 image path is required, got %d", ErrUsage, n)
		}
		return nil
	}
	if n < 1 || n > MaxImages {
		return fmt.Errorf("%w: you must provide at least 1 and at most %d image paths, got %d", ErrUsage, MaxImages, n)
	}
	return nil
}

// BuildPrompt returns the instruction text sent ahead of n images.
func BuildPrompt(n int, single bool) string {
	if single {
		return "Parse the following Walkabout mini golf scorecard image and output the data in this JSON format:\n\n" +
			strings.ReplaceAll(cardShape, "\n  ", "\n") +
			"\n\nInclude every player listed on the card. " + jsonOnly
	}

	var sb strings.Builder
	sb.WriteString("Parse the following Walkabout mini golf scorecard images and output the data for each image in this JSON format:\n\n{\n")
	fmt.Fprintf(&sb, "  \"image1\": %s,\n", cardShape)
	sb.WriteString("  \"image2\": {\n    // ... same structure for the second image\n  }\n}\n\n")
	fmt.Fprintf(&sb, "There %s %d %s. Use the keys image1 through image%d, numbered in the order the images are attached, with exactly one key per image. ",
		plural(n, "is", "are"), n, plural(n, "image", "images"), n)
	sb.WriteString(jsonOnly)
	return sb.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

package entities

import "fmt"

// PassingScore is the score above which an attempt counts as good
const PassingScore = 70

// FeedbackRecord is the structured result of one pronunciation analysis
type FeedbackRecord struct {
	Score         int      `json:"score" bson:"score"`
	Transcription string   `json:"transcription" bson:"transcription"`
	Issues        []string `json:"issues" bson:"issues"`
	Suggestions   []string `json:"suggestions" bson:"suggestions"`
}

// FallbackFeedback is returned whenever an analysis cannot be completed
func FallbackFeedback() FeedbackRecord {
	return FeedbackRecord{
		Score:         0,
		Transcription: "Error processing audio",
		Issues:        []string{"Could not analyze audio."},
		Suggestions:   []string{"Please try recording again clearly."},
	}
}

// Validate checks the record is within the accepted ranges
func (f FeedbackRecord) Validate() error {
	if f.Score < 0 || f.Score > 100 {
		return fmt.Errorf("score must be between 0 and 100, got %d", f.Score)
	}
	return nil
}

// Passed reports whether the attempt is above the passing score
func (f FeedbackRecord) Passed() bool {
	return f.Score > PassingScore
}

// Normalize replaces nil lists with empty ones so they encode as []
func (f FeedbackRecord) Normalize() FeedbackRecord {
	if f.Issues == nil {
		f.Issues = []string{}
	}
	if f.Suggestions == nil {
		f.Suggestions = []string{}
	}
	return f
}

package models

// Messages shown by the form collectors after a submission attempt.
const (
	FeedbackSubmitted = "Form submitted successfully!"
	FeedbackFailed    = "Failed to submit form. Please try again."
)

package domain

// User is a learner. Each user owns exactly one knowledge set.
type User struct {
	ID             UserID
	Username       string
	NativeLanguage NativeLanguage
	Level          JapaneseLevel
}
